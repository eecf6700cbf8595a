// Command blockqueue runs the ingestion core standalone: a BlocksQueue fed
// by a Loader and drained by an Iterator, against a bundled synthetic
// provider by default.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/drone/envsubst"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/flagext"
	"gopkg.in/yaml.v3"

	"github.com/nodebridge/blockqueue/cmd/blockqueue/app"
	"github.com/nodebridge/blockqueue/cmd/blockqueue/build"
	util_log "github.com/nodebridge/blockqueue/pkg/util/log"
)

const appName = "blockqueue"

func main() {
	if CheckHealth(os.Args[1:]) {
		os.Exit(RunHealthCheck(os.Args[1:]))
	}

	printVersion := flag.Bool("version", false, "Print this build's version information and exit.")

	cfg, configVerify, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed parsing config: %v\n", err)
		os.Exit(1)
	}

	if *printVersion {
		fmt.Println(build.Print(appName))
		os.Exit(0)
	}

	if configVerify {
		os.Exit(0)
	}

	a, err := app.New(*cfg)
	if err != nil {
		level.Error(util_log.Logger).Log("msg", "error initialising blockqueue", "err", err)
		os.Exit(1)
	}

	if err := a.Run(); err != nil {
		level.Error(util_log.Logger).Log("msg", "error running blockqueue", "err", err)
		os.Exit(1)
	}
}

func loadConfig() (*app.Config, bool, error) {
	const (
		configFileOption      = "config.file"
		configExpandEnvOption = "config.expand-env"
		configVerifyOption    = "config.verify"
	)

	var (
		configFile      string
		configExpandEnv bool
		configVerify    bool
	)

	args := os.Args[1:]
	cfg := &app.Config{}

	fs := flag.NewFlagSet("", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&configFile, configFileOption, "", "")
	fs.BoolVar(&configExpandEnv, configExpandEnvOption, false, "")
	fs.BoolVar(&configVerify, configVerifyOption, false, "")

	// As flag.Parse stops at the first unrecognized flag, walk the
	// argument list one token at a time until every flag has been seen or
	// the list is exhausted.
	for len(args) > 0 {
		_ = fs.Parse(args)
		args = args[1:]
	}

	cfg.RegisterFlagsAndApplyDefaults("", flag.CommandLine)

	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, false, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
		if configExpandEnv {
			s, err := envsubst.EvalEnv(string(buf))
			if err != nil {
				return nil, false, fmt.Errorf("failed to expand env vars in config file %s: %w", configFile, err)
			}
			buf = []byte(s)
		}
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, false, fmt.Errorf("failed to parse config file %s: %w", configFile, err)
		}
	}

	flagext.IgnoredFlag(flag.CommandLine, configFileOption, "Configuration file to load")
	flagext.IgnoredFlag(flag.CommandLine, configExpandEnvOption, "Whether to expand environment variables in config file")
	flagext.IgnoredFlag(flag.CommandLine, configVerifyOption, "Verify configuration and exit")
	flag.Parse()

	return cfg, configVerify, nil
}
