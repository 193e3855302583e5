// Package main defines the beacon chain node entry point: flag parsing, log
// setup, and handing control to the node lifecycle.
package main

import (
	"os"
	"runtime"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"

	"github.com/zephyrlabs/zephyr/beacon-chain/flags"
	"github.com/zephyrlabs/zephyr/beacon-chain/node"
)

var log = logrus.WithField("prefix", "main")

var appFlags = []cli.Flag{
	flags.DataDirFlag,
	flags.VerbosityFlag,
	flags.ClearDB,
	flags.StorageModeFlag,
	flags.MinimalConfigFlag,
	flags.P2PEnabled,
	flags.P2PIP,
	flags.P2PHostIP,
	flags.P2PTCPPort,
	flags.P2PAdvertisedPort,
	flags.StaticPeers,
	flags.DiscoveryEnabled,
	flags.BootstrapNode,
	flags.MinPeers,
	flags.MaxPeers,
	flags.P2PPrivKey,
	flags.P2PSnappy,
	flags.StartupTargetPeers,
	flags.StartupTimeout,
	flags.Eth1Enabled,
	flags.Eth1Endpoint,
	flags.InteropMode,
	flags.InteropGenesisTime,
	flags.InteropNumValidators,
	flags.GenesisStatePath,
}

func startNode(cliCtx *cli.Context) error {
	beacon, err := node.New(cliCtx)
	if err != nil {
		return err
	}
	beacon.Start()
	return beacon.FatalError()
}

func main() {
	app := cli.App{}
	app.Name = "beacon-chain"
	app.Usage = "this is a beacon chain implementation for Ethereum 2.0"
	app.Flags = appFlags
	app.Action = startNode
	app.Before = func(ctx *cli.Context) error {
		formatter := new(prefixed.TextFormatter)
		formatter.TimestampFormat = "2006-01-02 15:04:05"
		formatter.FullTimestamp = true
		logrus.SetFormatter(formatter)

		level, err := logrus.ParseLevel(ctx.String(flags.VerbosityFlag.Name))
		if err != nil {
			return err
		}
		logrus.SetLevel(level)

		runtime.GOMAXPROCS(runtime.NumCPU())
		return nil
	}

	if err := app.Run(os.Args); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}
