// Copyright (c) the Alpine AMI Tools authors.
// Licensed under the MIT License.

// Tool to provision a bootable Alpine Linux root filesystem onto a blank
// block device, ready to snapshot into an AMI.

package main

import (
	"context"
	"log"
	"maps"

	"github.com/alecthomas/kong"
	"github.com/alpine-cloud/alpine-ami-tools/internal/exekong"
	"github.com/alpine-cloud/alpine-ami-tools/internal/logger"
	"github.com/alpine-cloud/alpine-ami-tools/internal/ptrutils"
	"github.com/alpine-cloud/alpine-ami-tools/internal/telemetry"
	"github.com/alpine-cloud/alpine-ami-tools/pkg/provisionerlib"
	"github.com/alpine-cloud/alpine-ami-tools/provisionerapi"
)

type AmiProvisionerCmd struct {
	Device           string `arg:"" name:"device" help:"Block device to provision (e.g. /dev/xvdf)."`
	BuildDir         string `name:"build-dir" help:"Directory to run build out of." required:""`
	ProfileFile      string `name:"profile-file" help:"Path of an optional YAML profile overriding the built-in defaults."`
	DisableTelemetry bool   `name:"disable-telemetry" help:"Disable telemetry collection."`
	exekong.LogFlags
}

func main() {
	ctx := context.Background()

	cli := &AmiProvisionerCmd{}

	vars := kong.Vars{
		"version": provisionerlib.ToolVersion,
	}
	maps.Copy(vars, exekong.KongVars)

	_ = kong.Parse(cli,
		vars,
		kong.HelpOptions{
			Compact:   true,
			FlagsLast: true,
		},
		kong.UsageOnError())

	logger.InitBestEffort(ptrutils.PtrTo(cli.LogFlags.AsLoggerFlags()))

	err := telemetry.InitTelemetry(cli.DisableTelemetry, provisionerlib.ToolVersion)
	if err != nil {
		logger.Log.Warnf("Failed to initialize telemetry: %v", err)
	}
	defer func() {
		shutdownErr := telemetry.ShutdownTelemetry(ctx)
		if shutdownErr != nil {
			logger.Log.Warnf("Failed to shut down telemetry: %v", shutdownErr)
		}
	}()

	err = provisionImage(ctx, cli)
	if err != nil {
		log.Fatalf("image provisioning failed:\n%v", err)
	}
}

func provisionImage(ctx context.Context, cli *AmiProvisionerCmd) error {
	config, err := provisionerapi.BuildConfig(cli.Device, cli.ProfileFile)
	if err != nil {
		return err
	}

	return provisionerlib.ProvisionImage(ctx, config, cli.BuildDir)
}
