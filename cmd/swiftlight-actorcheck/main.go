// Command swiftlight-actorcheck verifies the actor-concurrency semantics of
// a compiled SwiftLight module fixture.
//
// The tool loads a JSON module fixture, runs the verification pipeline and
// prints the findings. With --watch it keeps running: a change that decodes
// to a different module triggers full re-verification, while rewrites that
// leave the module unchanged only re-run the incremental checks (handler
// coverage and deadlock scoring).
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/menchan-Rub/SwiftLight-sub000/internal/actorcheck"
	"github.com/menchan-Rub/SwiftLight-sub000/internal/cli"
	"github.com/menchan-Rub/SwiftLight-sub000/internal/diagnostics"
	"github.com/menchan-Rub/SwiftLight-sub000/internal/fixture"
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "show version information")
		jsonOut     = flag.Bool("json", false, "emit findings as JSON")
		configPath  = flag.String("config", "", "policy overrides file (JSON)")
		watchMode   = flag.Bool("watch", false, "keep running and re-check on fixture change")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] <fixture.json>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "SwiftLight actor-concurrency verifier.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEXAMPLES:\n")
		fmt.Fprintf(os.Stderr, "  %s build/app.module.json          # one-shot verification\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --config policy.json app.json  # custom severity policy\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --watch app.json               # re-check on change\n", os.Args[0])
	}

	flag.Parse()

	if *showVersion {
		cli.PrintVersion("SwiftLight Actor Verifier", *jsonOut)
		os.Exit(0)
	}

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	path := flag.Arg(0)

	cfg := actorcheck.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = actorcheck.LoadConfig(*configPath); err != nil {
			cli.ExitWithError("%v", err)
		}
	}

	module, err := fixture.Load(path)
	if err != nil {
		cli.ExitWithError("%v", err)
	}
	result, err := actorcheck.Verify(module, cfg)
	if err != nil {
		cli.ExitWithError("%v", err)
	}
	report(result.Diagnostics(), *jsonOut)
	if !*jsonOut {
		fmt.Println(result.Summary())
	}

	if !*watchMode {
		if result.HasFatal() {
			os.Exit(1)
		}
		return
	}

	sig, err := fixture.Encode(module)
	if err != nil {
		cli.ExitWithError("%v", err)
	}
	watch(path, cfg, *jsonOut, result, sig)
}

// watch re-checks the fixture on every change. The canonical encoding of the
// decoded module serves as its signature: equal signature means only the
// incremental checks run against the existing result.
func watch(path string, cfg actorcheck.Config, jsonOut bool, result *actorcheck.Result, sig []byte) {
	fw, err := fixture.NewWatcher(path)
	if err != nil {
		cli.ExitWithError("watch %s: %v", path, err)
	}
	defer fw.Close()

	log.Printf("watching %s", path)
	for {
		select {
		case ev := <-fw.Events():
			if !ev.Op.Touched() {
				continue
			}
			module, err := fixture.Load(path)
			if err != nil {
				log.Printf("reload: %v", err)
				continue
			}
			next, err := fixture.Encode(module)
			if err != nil {
				log.Printf("reload: %v", err)
				continue
			}

			if bytes.Equal(next, sig) {
				diags, err := result.Validate()
				if err != nil {
					log.Printf("validate: %v", err)
					continue
				}
				log.Printf("re-checked %s: %d finding(s)", path, len(diags))
				report(diags, jsonOut)
				continue
			}

			r, err := actorcheck.Verify(module, cfg)
			if err != nil {
				log.Printf("verify: %v", err)
				continue
			}
			result, sig = r, next
			log.Printf("re-verified %s", path)
			report(result.Diagnostics(), jsonOut)
			if !jsonOut {
				fmt.Println(result.Summary())
			}
		case err := <-fw.Errors():
			log.Printf("watch error: %v", err)
		}
	}
}

type finding struct {
	Level     string   `json:"level"`
	Category  string   `json:"category"`
	Code      string   `json:"code"`
	Message   string   `json:"message"`
	Span      string   `json:"span,omitempty"`
	Offenders []string `json:"offenders,omitempty"`
	Cycle     []string `json:"cycle,omitempty"`
}

func report(diags []diagnostics.Diagnostic, jsonOut bool) {
	if !jsonOut {
		for _, d := range diags {
			fmt.Println(d.String())
		}
		return
	}

	out := make([]finding, 0, len(diags))
	for _, d := range diags {
		f := finding{
			Level:     d.Level.String(),
			Category:  d.Category.String(),
			Code:      d.Code,
			Message:   d.Message,
			Offenders: d.Offenders,
			Cycle:     d.Cycle,
		}
		if d.Span.IsValid() {
			f.Span = d.Span.String()
		}
		out = append(out, f)
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		cli.ExitWithError("encode findings: %v", err)
	}
	fmt.Println(string(data))
}
