// Package producer runs oracle source scripts inside the enclave and turns
// their output into signed result payloads. Scripts are JavaScript executed
// on an embedded runtime with a small host API for fetching source data.
package producer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/tidwall/gjson"

	"github.com/coeus-network/tee-oracle-backend/metrics"
	"github.com/coeus-network/tee-oracle-backend/result"
)

const (
	// MaxScriptSize bounds the script source accepted by the engine.
	MaxScriptSize = 1 << 20

	// DefaultTimeout applies when the caller's context has no deadline.
	DefaultTimeout = 30 * time.Second

	// maxResponseSize bounds source HTTP response bodies.
	maxResponseSize = 10 << 20
)

// Engine executes producer scripts and converts their output to the feed's
// declared return type.
type Engine struct {
	client *http.Client
	log    *slog.Logger
}

// NewEngine creates a script engine. The HTTP client is used by the script
// host functions; nil selects a default with a 20s timeout.
func NewEngine(client *http.Client, log *slog.Logger) *Engine {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &Engine{client: client, log: log}
}

// Execute runs the script and converts its final expression value to
// expectedType. A fresh runtime is created per call; scripts share no state.
func (e *Engine) Execute(ctx context.Context, script string, expectedType result.ReturnType) (*result.Result, error) {
	if err := expectedType.Validate(); err != nil {
		return nil, err
	}
	if script == "" {
		return nil, fmt.Errorf("script is empty")
	}
	if len(script) > MaxScriptSize {
		return nil, fmt.Errorf("script exceeds maximum size of %d bytes", MaxScriptSize)
	}

	vm := goja.New()
	if err := e.registerHostFunctions(ctx, vm); err != nil {
		return nil, err
	}

	timeout := DefaultTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-time.After(timeout):
			vm.Interrupt("execution timeout")
		case <-ctx.Done():
			vm.Interrupt("execution cancelled")
		case <-done:
		}
	}()
	defer close(done)

	start := time.Now()
	value, err := vm.RunString(script)
	if err != nil {
		return nil, fmt.Errorf("script execution failed: %w", err)
	}

	metrics.ScriptExecutionDuration.Observe(time.Since(start).Seconds())
	e.log.Debug("Script executed",
		slog.String("return_type", expectedType.String()),
		slog.Duration("duration", time.Since(start)))

	return convertValue(value.Export(), expectedType)
}

// registerHostFunctions installs the source-fetching API available to
// scripts: httpGet(url) returns the body as a string, fetchJSON(url) returns
// the parsed JSON document.
func (e *Engine) registerHostFunctions(ctx context.Context, vm *goja.Runtime) error {
	if err := vm.Set("httpGet", func(url string) string {
		body, err := e.httpGetString(ctx, url)
		if err != nil {
			e.log.Warn("httpGet failed", slog.String("url", url), "err", err)
			return fmt.Sprintf("Error: %v", err)
		}
		return body
	}); err != nil {
		return err
	}

	if err := vm.Set("fetchJSON", func(url string) goja.Value {
		body, err := e.httpGetString(ctx, url)
		if err != nil {
			e.log.Warn("fetchJSON failed", slog.String("url", url), "err", err)
			return goja.Null()
		}
		parsed := gjson.Parse(strings.TrimSpace(body))
		if !parsed.IsObject() && !parsed.IsArray() {
			e.log.Warn("fetchJSON got non-JSON response", slog.String("url", url))
			return goja.Null()
		}
		return vm.ToValue(parsed.Value())
	}); err != nil {
		return err
	}

	console := vm.NewObject()
	if err := console.Set("log", func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		e.log.Info("script console.log", slog.String("msg", strings.Join(parts, " ")))
		return goja.Undefined()
	}); err != nil {
		return err
	}
	return vm.Set("console", console)
}

func (e *Engine) httpGetString(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("invalid source URL: %w", err)
	}
	req.Header.Set("Accept", "application/json, text/plain, */*")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("source request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("source returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("failed to read source response: %w", err)
	}
	return string(body), nil
}

// convertValue coerces the script's exported output to the feed's declared
// return type. The rules are deliberately lenient on input shape (numeric
// strings parse as numbers, "true"/"1" parse as booleans) and strict on
// range: negative numbers and out-of-range byte values are rejected rather
// than wrapped.
func convertValue(v any, expectedType result.ReturnType) (*result.Result, error) {
	switch expectedType {
	case result.ReturnString:
		r := result.MakeString(strings.TrimSpace(stringify(v)))
		return &r, nil

	case result.ReturnNumber:
		n, err := toUint64(v)
		if err != nil {
			return nil, err
		}
		r := result.MakeNumber(n)
		return &r, nil

	case result.ReturnBoolean:
		b, err := toBool(v)
		if err != nil {
			return nil, err
		}
		r := result.MakeBoolean(b)
		return &r, nil

	case result.ReturnVector:
		raw, err := toBytes(v)
		if err != nil {
			return nil, err
		}
		r := result.MakeBytes(raw)
		return &r, nil

	default:
		return nil, fmt.Errorf("unhandled return type %d", expectedType)
	}
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func toUint64(v any) (uint64, error) {
	switch t := v.(type) {
	case int64:
		if t < 0 {
			return 0, fmt.Errorf("negative number not supported: %d", t)
		}
		return uint64(t), nil
	case float64:
		if t < 0 {
			return 0, fmt.Errorf("negative number not supported: %v", t)
		}
		// math.MaxUint64 rounds up to 2^64 as a float64, so the bound
		// itself is already out of range.
		if t >= 1<<64 {
			return 0, fmt.Errorf("number out of range: %v", t)
		}
		return uint64(t), nil
	default:
		s := strings.TrimSpace(stringify(v))
		if strings.HasPrefix(s, "Error:") {
			return 0, fmt.Errorf("script source fetch failed: %s", s)
		}
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert to NUMBER: %q is not a valid number", s)
		}
		return n, nil
	}
}

func toBool(v any) (bool, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	switch strings.ToLower(strings.TrimSpace(stringify(v))) {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("cannot convert to BOOLEAN")
	}
}

func toBytes(v any) ([]byte, error) {
	arr, ok := v.([]any)
	if !ok {
		return []byte(stringify(v)), nil
	}

	var out []byte
	for _, item := range arr {
		switch t := item.(type) {
		case int64:
			if t < 0 || t > 255 {
				return nil, fmt.Errorf("value %d out of byte range", t)
			}
			out = append(out, byte(t))
		case float64:
			if t < 0 || t > 255 || t != math.Trunc(t) {
				return nil, fmt.Errorf("value %v out of byte range", t)
			}
			out = append(out, byte(t))
		case string:
			out = append(out, t...)
		default:
			return nil, fmt.Errorf("unsupported array element type %T", item)
		}
	}
	return out, nil
}
