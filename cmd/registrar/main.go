package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/coeus-network/tee-oracle-backend/attestor"
	"github.com/coeus-network/tee-oracle-backend/cmd/flags"
	"github.com/coeus-network/tee-oracle-backend/discovery"
	"github.com/coeus-network/tee-oracle-backend/interfaces"
)

var registrarFlags = append([]cli.Flag{
	&cli.StringFlag{
		Name:     "admin-address",
		Required: true,
		Usage:    "registry admin address. 40-char hex string with no 0x prefix",
	},
	&cli.StringSliceFlag{
		Name:     "measurement",
		Required: true,
		Usage:    "expected enclave measurement register, hex, in register order (repeatable)",
	},
	&cli.StringFlag{
		Name:  "endpoint",
		Usage: "producer attestation endpoint URL, e.g. https://oracle.example.com/get_attestation",
	},
	&cli.StringFlag{
		Name:  "service-domain",
		Usage: "DNS service domain to discover producer endpoints from (alternative to --endpoint)",
	},
	&cli.StringFlag{
		Name:  "dns-resolver",
		Value: discovery.DefaultResolverAddr,
		Usage: "DNS resolver address for service discovery",
	},
}, flags.CommonFlags...)

func main() {
	app := &cli.App{
		Name:   "registrar",
		Usage:  "Register an enclave measurement set and bind its verifying key from a live attestation",
		Flags:  registrarFlags,
		Action: runRegistrar,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runRegistrar(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)

	admin, err := interfaces.NewPrincipalFromHex(cCtx.String("admin-address"))
	if err != nil {
		return fmt.Errorf("invalid admin address: %w", err)
	}

	measurements, err := parseMeasurements(cCtx.StringSlice("measurement"))
	if err != nil {
		return err
	}

	urls, err := attestationURLs(cCtx)
	if err != nil {
		return err
	}

	registry := attestor.NewRegistry(admin, attestor.DCAPVerifier{})
	identity, err := registry.Register(admin, measurements)
	if err != nil {
		return err
	}

	identityHash, err := attestor.ComputeIdentityHash(measurements)
	if err != nil {
		return err
	}
	logger.Info("Identity registered",
		"identityHash", hex.EncodeToString(identityHash[:]),
		"registers", len(measurements))

	// Bind the key from the first endpoint that produces a valid document.
	var lastErr error
	for _, url := range urls {
		doc, err := fetchAttestation(url)
		if err != nil {
			logger.Warn("Failed to fetch attestation", "url", url, "err", err)
			lastErr = err
			continue
		}

		key, err := registry.Verify(identity, doc)
		if err != nil {
			logger.Warn("Attestation rejected", "url", url, "err", err)
			lastErr = err
			continue
		}

		fmt.Printf("identity_hash: %s\n", hex.EncodeToString(identityHash[:]))
		fmt.Printf("verifying_key: %s\n", hex.EncodeToString(key))
		return nil
	}

	return fmt.Errorf("no endpoint produced an admissible attestation: %w", lastErr)
}

func attestationURLs(cCtx *cli.Context) ([]string, error) {
	if endpoint := cCtx.String("endpoint"); endpoint != "" {
		return []string{endpoint}, nil
	}

	domain := cCtx.String("service-domain")
	if domain == "" {
		return nil, fmt.Errorf("either --endpoint or --service-domain is required")
	}

	resolver := discovery.NewResolver(cCtx.String("dns-resolver"))
	return resolver.ResolveAttestationURLs(domain)
}

func fetchAttestation(url string) (interfaces.Attestation, error) {
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}

	var body struct {
		Attestation string `json:"attestation"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("invalid attestation response: %w", err)
	}
	return hex.DecodeString(body.Attestation)
}

func parseMeasurements(hexRegs []string) (interfaces.MeasurementSet, error) {
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
