// Command quote prices a single part specification from the command line.
//
//	quote -spec part.yaml [-snapshot pricing.yaml] [-explain=false]
//	quote -dump-snapshot > pricing.yaml
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/partquote/internal/pricing"
	"github.com/noah-isme/partquote/internal/quote"
	"github.com/noah-isme/partquote/internal/snapshot"
)

func main() {
	_ = godotenv.Load()
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("quote", flag.ContinueOnError)
	specPath := fs.String("spec", "-", "part specification as YAML or JSON; - reads stdin")
	snapshotPath := fs.String("snapshot", os.Getenv("PRICING_SNAPSHOT_PATH"), "pricing snapshot YAML; empty uses the built-in defaults")
	explain := fs.Bool("explain", true, "include the step-by-step explanation")
	dump := fs.Bool("dump-snapshot", false, "print the active pricing snapshot as YAML and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		snap *snapshot.Snapshot
		err  error
	)
	if *snapshotPath == "" {
		snap = snapshot.Default()
	} else if snap, err = snapshot.LoadFile(*snapshotPath); err != nil {
		return err
	}
	if *dump {
		return snapshot.Write(stdout, snap)
	}

	raw, err := readSpec(*specPath, stdin)
	if err != nil {
		return err
	}
	var in pricing.SpecInput
	if err := yaml.Unmarshal(raw, &in); err != nil {
		return fmt.Errorf("decode spec: %w", err)
	}

	svc, err := quote.NewService(quote.ServiceConfig{Source: snapshot.Static(snap)})
	if err != nil {
		return err
	}
	q, err := svc.Quote(context.Background(), in, quote.Options{Explain: *explain})
	if err != nil {
		var verr *pricing.ValidationError
		if errors.As(err, &verr) {
			for _, f := range verr.Fields {
				fmt.Fprintf(os.Stderr, "  %s: %s\n", f.Field, f.Message)
			}
		}
		return err
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(q)
}

func readSpec(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}
