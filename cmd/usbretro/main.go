// Command usbretro is the host-side build: it selects a console wire
// protocol, a USB host transport (real hardware or a virtual usbip bus
// for testing), and an optional bridge output target, then runs until
// interrupted.
package main

import (
	"os"
	"strings"

	"github.com/usbretro/usbretro/internal/cmd"
	"github.com/usbretro/usbretro/internal/configpaths"
	"github.com/usbretro/usbretro/internal/log"

	_ "github.com/usbretro/usbretro/internal/registry" // Register all device drivers

	"github.com/alecthomas/kong"
	kongtoml "github.com/alecthomas/kong-toml"
	kongyaml "github.com/alecthomas/kong-yaml"
)

// CLI is the top-level command surface: "run" drives a console build,
// "config init" scaffolds a config file for it.
type CLI struct {
	Run    cmd.Run           `cmd:"" help:"Run a console output build against a USB host transport"`
	Config cmd.ConfigCommand `cmd:"" help:"Configuration file management"`

	Log struct {
		Level   string `help:"Log level: trace, debug, info, warn, error" default:"info"`
		File    string `help:"Write logs to this file instead of stdout/stderr"`
		RawFile string `help:"Write raw USB wire traffic hex dumps to this file"`
	} `embed:"" prefix:"log."`

	ConfigFlag string `name:"config" help:"Path to a config file (json/yaml/toml)"`
}

func main() {
	userCfg := findUserConfig(os.Args[1:])
	jsonPaths, yamlPaths, tomlPaths := configpaths.ConfigCandidatePaths(userCfg)

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("usbretro"),
		kong.Description("USB host-to-console controller bridge"),
		kong.UsageOnError(),
		kong.Configuration(kong.JSON, jsonPaths...),
		kong.Configuration(kongyaml.Loader, yamlPaths...),
		kong.Configuration(kongtoml.Loader, tomlPaths...),
	)

	logger, closeFiles, err := log.SetupLogger(cli.Log.Level, cli.Log.File)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to setup logger: " + err.Error() + "\n")
		os.Exit(2)
	}
	defer func() {
		for _, c := range closeFiles {
			_ = c.Close()
		}
	}()

	var rawLogger log.RawLogger
	if cli.Log.RawFile != "" {
		f, err := os.OpenFile(cli.Log.RawFile, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
		if err != nil {
			logger.Error("failed to open raw log file", "file", cli.Log.RawFile, "error", err)
			rawLogger = log.NewRaw(nil)
		} else {
			rawLogger = log.NewRaw(f)
			closeFiles = append(closeFiles, f)
		}
	} else if cli.Log.Level == "trace" {
		rawLogger = log.NewRaw(os.Stdout)
	} else {
		rawLogger = log.NewRaw(nil)
	}

	ctx.Bind(logger)
	ctx.BindTo(rawLogger, (*log.RawLogger)(nil))

	err = ctx.Run()
	ctx.FatalIfErrorf(err)
}

func findUserConfig(args []string) string {
	for i := 0; i < len(args); i++ {
		a := args[i]
		if strings.HasPrefix(a, "--config=") {
			return a[len("--config="):]
		}
		if a == "--config" && i+1 < len(args) {
			return args[i+1]
		}
	}
	if v := os.Getenv("USBRETRO_CONFIG"); v != "" {
		return v
	}
	return ""
}
