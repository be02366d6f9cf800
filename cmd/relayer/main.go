// Package main launches the relayer: the off-chain coordination service that
// mirrors market state, collects attestation signatures and submits finalize
// transactions.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
	_ "go.uber.org/automaxprocs"

	"github.com/sidebetlabs/relayer/config"
	"github.com/sidebetlabs/relayer/node"
)

var log = logrus.WithField("prefix", "main")

func startRelayer(cliCtx *cli.Context) error {
	relayer, err := node.New(cliCtx)
	if err != nil {
		return err
	}
	relayer.Start()
	return nil
}

func main() {
	app := cli.App{}
	app.Name = "relayer"
	app.Usage = "coordination backend that mirrors prediction markets, collects attestations and finalizes outcomes"
	app.Flags = config.Flags
	app.Action = startRelayer
	app.Before = func(ctx *cli.Context) error {
		formatter := new(prefixed.TextFormatter)
		formatter.TimestampFormat = "2006-01-02 15:04:05"
		formatter.FullTimestamp = true
		logrus.SetFormatter(formatter)
		return nil
	}

	if err := app.Run(os.Args); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}
