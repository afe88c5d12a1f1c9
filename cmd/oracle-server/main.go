package main

import (
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/coeus-network/tee-oracle-backend/attestor"
	"github.com/coeus-network/tee-oracle-backend/cmd/flags"
	"github.com/coeus-network/tee-oracle-backend/httpserver"
	"github.com/coeus-network/tee-oracle-backend/interfaces"
	"github.com/coeus-network/tee-oracle-backend/ledger"
	"github.com/coeus-network/tee-oracle-backend/metrics"
	"github.com/coeus-network/tee-oracle-backend/producer"
	"github.com/coeus-network/tee-oracle-backend/scriptstore"
	"github.com/coeus-network/tee-oracle-backend/trust"
)

var serverFlags = append([]cli.Flag{
	flags.ListenAddrFlag,
	flags.StorageURIsFlag,
	flags.KeystorePathFlag,
	flags.SealingSecretFlag,
	flags.AttestationProviderFlag,
	&cli.StringFlag{
		Name:     "admin-address",
		Required: true,
		Usage:    "trust config admin address. 40-char hex string with no 0x prefix",
	},
	&cli.Uint64Flag{
		Name:  "max-staleness-ms",
		Value: trust.DefaultMaxStalenessMs,
		Usage: "maximum accepted result age in milliseconds",
	},
	&cli.StringSliceFlag{
		Name:  "measurement",
		Usage: "expected enclave measurement register, hex, in register order (repeatable)",
	},
}, flags.CommonFlags...)

func main() {
	app := &cli.App{
		Name:   "oracle-server",
		Usage:  "Serve the TEE oracle API: attestation, feed refresh and script execution",
		Flags:  serverFlags,
		Action: runServer,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runServer(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)

	admin, err := interfaces.NewPrincipalFromHex(cCtx.String("admin-address"))
	if err != nil {
		return fmt.Errorf("invalid admin address: %w", err)
	}

	// Script storage
	storageFactory := scriptstore.NewFactory(logger)
	scripts, err := storageFactory.CreateMultiBackend(cCtx.StringSlice(flags.StorageURIsFlag.Name))
	if err != nil {
		return fmt.Errorf("failed to set up script storage: %w", err)
	}

	// Signing key, sealed at rest when a sealing secret is configured
	signer, err := setupSigner(cCtx)
	if err != nil {
		return err
	}
	logger.Info("Signer ready", "publicKey", hex.EncodeToString(signer.PublicKey()))

	// Attestation provider and enclave identity
	provider, verifier, err := setupAttestation(cCtx, signer)
	if err != nil {
		return err
	}

	measurements, err := parseMeasurements(cCtx.StringSlice("measurement"))
	if err != nil {
		return err
	}

	registry := attestor.NewRegistry(admin, verifier)
	identity, err := registry.Register(admin, measurements)
	if err != nil {
		return err
	}

	doc, err := provider.Attest(signer.ReportData())
	if err != nil {
		return fmt.Errorf("failed to obtain attestation document: %w", err)
	}
	if _, err := registry.Verify(identity, doc); err != nil {
		metrics.AttestationsVerified.WithLabelValues("rejected").Inc()
		return fmt.Errorf("failed to establish enclave identity: %w", err)
	}
	metrics.AttestationsVerified.WithLabelValues("admitted").Inc()
	logger.Info("Enclave identity established", "measurements", len(measurements))

	// Trust config and shared store
	cfg := trust.NewConfig(admin)
	if err := cfg.SetMaxStaleness(admin, cCtx.Uint64("max-staleness-ms")); err != nil {
		return err
	}
	store := ledger.NewStore()

	engine := producer.NewEngine(nil, logger)
	runner := &producer.Runner{
		Engine:   engine,
		Signer:   signer,
		Scripts:  scripts,
		Store:    store,
		Trust:    cfg,
		Identity: identity,
		Log:      logger,
	}
	scheduler := producer.NewScheduler(runner, logger)
	scheduler.Start()
	defer scheduler.Stop()

	handler := httpserver.NewHandler(provider, signer, runner, engine, logger)
	adminHandler := &httpserver.AdminHandler{
		Scripts:   scripts,
		Store:     store,
		Scheduler: scheduler,
		Creator:   admin,
		Log:       logger,
	}

	srv, err := httpserver.New(flags.ConfigureServer(cCtx, logger), handler, adminHandler)
	if err != nil {
		return err
	}
	srv.RunInBackground()

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
	<-exit

	srv.Shutdown()
	return nil
}

func setupSigner(cCtx *cli.Context) (*producer.Signer, error) {
	secretHex := cCtx.String(flags.SealingSecretFlag.Name)
	if secretHex == "" {
		return producer.NewSigner()
	}

	secret, err := hex.DecodeString(secretHex)
	if err != nil {
		return nil, fmt.Errorf("invalid sealing secret: %w", err)
	}

	keystore, err := producer.NewKeystore(cCtx.String(flags.KeystorePathFlag.Name), secret)
	if err != nil {
		return nil, err
	}
	return keystore.LoadOrCreate()
}

// setupAttestation selects the attestation provider and the matching
// document verifier. The static pair is for development: the verifier trusts
// the placeholder document to carry the configured measurements.
func setupAttestation(cCtx *cli.Context, signer *producer.Signer) (attestor.AttestationProvider, attestor.DocumentVerifier, error) {
	mode := cCtx.String(flags.AttestationProviderFlag.Name)
	switch {
	case mode == "dcap":
		return attestor.DCAPProvider{}, attestor.DCAPVerifier{}, nil

	case mode == "static":
		provider := attestor.StaticProvider{}
		doc, err := provider.Attest(signer.ReportData())
		if err != nil {
			return nil, nil, err
		}

		measurements, err := parseMeasurements(cCtx.StringSlice("measurement"))
		if err != nil {
			return nil, nil, err
		}

		verifier := attestor.NewStaticVerifier()
		verifier.Add(doc, &attestor.AttestationReport{
			Measurements: measurements,
			PublicKey:    signer.PublicKey(),
		})
		return provider, verifier, nil

	case strings.HasPrefix(mode, "http://"), strings.HasPrefix(mode, "https://"):
		return &attestor.RemoteProvider{Address: mode}, attestor.DCAPVerifier{}, nil

	default:
		return nil, nil, fmt.Errorf("unknown attestation provider %q", mode)
	}
}

func parseMeasurements(hexRegs []string) (interfaces.MeasurementSet, error) {
	if len(hexRegs) == 0 {
		// Development default: a single zero register.
		return interfaces.MeasurementSet{{}}, nil
	}

	set := make(interfaces.MeasurementSet, 0, len(hexRegs))
	for i, h := range hexRegs {
		raw, err := hex.DecodeString(strings.TrimPrefix(h, "0x"))
		if err != nil {
			return nil, fmt.Errorf("measurement %d: %w", i, err)
		}
		m, err := interfaces.NewMeasurementFromBytes(raw)
		if err != nil {
			return nil, fmt.Errorf("measurement %d: %w", i, err)
		}
		set = append(set, m)
	}
	return set, nil
}
