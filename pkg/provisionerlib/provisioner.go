// Copyright (c) the Alpine AMI Tools authors.
// Licensed under the MIT License.

// Package provisionerlib turns a blank block device into a bootable Alpine
// Linux root filesystem suitable for snapshotting into an AMI.
package provisionerlib

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/alpine-cloud/alpine-ami-tools/internal/logger"
	"github.com/alpine-cloud/alpine-ami-tools/internal/safechroot"
	"github.com/alpine-cloud/alpine-ami-tools/internal/safemount"
	"github.com/alpine-cloud/alpine-ami-tools/provisionerapi"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	OtelTracerName = "provisionerlib"

	targetDirName = "target"
	toolsDirName  = "tools"
	keysDirName   = "keys"
)

// ToolVersion specifies the version of the provisioner tool.
// The value of this string is inserted during compilation via a linker flag.
var ToolVersion = ""

// provisionState carries the working state threaded through the stages.
type provisionState struct {
	config *provisionerapi.Config

	buildDir  string
	targetDir string
	toolsDir  string
	keysDir   string

	apkStaticPath string

	targetMount *safemount.Mount
	chroot      *safechroot.Chroot

	kernelVersion string
	buildTime     string
	imageUuid     string
}

type provisionStage struct {
	name string
	run  func(ctx context.Context, state *provisionState) error
}

func provisionStages() []provisionStage {
	return []provisionStage{
		{"preflight", checkPreflight},
		{"fetch_tools", fetchTools},
		{"provision_filesystem", provisionFilesystem},
		{"configure_repositories", configureRepositories},
		{"install_base", installBase},
		{"activate_chroot", activateChroot},
		{"install_packages", installPackages},
		{"configure_initramfs", configureInitramfs},
		{"install_bootloader", installBootloader},
		{"configure_runtime", configureRuntime},
		{"provision_user", provisionUser},
		{"configure_time_sync", configureTimeSync},
		{"write_release", writeRelease},
		{"cleanup", runCleanup},
	}
}

// ProvisionImage runs the full provisioning pipeline against the device
// named in the config. The pipeline halts on the first error; mounts and
// the chroot are torn down on every exit path.
func ProvisionImage(ctx context.Context, config *provisionerapi.Config, buildDir string) (err error) {
	ctx, span := otel.GetTracerProvider().Tracer(OtelTracerName).Start(ctx, "provision_image")
	span.SetAttributes(
		attribute.String("release", config.Release),
		attribute.String("arch", config.Arch),
	)
	defer func() {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if os.Geteuid() != 0 {
		return NewProvisionerError(UsageError, ToolMustRunAsRootError.Error())
	}

	buildDirAbs, err := filepath.Abs(buildDir)
	if err != nil {
		return fmt.Errorf("failed to resolve build directory (%s):\n%w", buildDir, err)
	}

	err = os.MkdirAll(buildDirAbs, 0o755)
	if err != nil {
		return fmt.Errorf("failed to create build directory (%s):\n%w", buildDirAbs, err)
	}

	state := &provisionState{
		config:    config,
		buildDir:  buildDirAbs,
		targetDir: filepath.Join(buildDirAbs, targetDirName),
		toolsDir:  filepath.Join(buildDirAbs, toolsDirName),
		keysDir:   filepath.Join(buildDirAbs, keysDirName),
		buildTime: time.Now().Format("2006-01-02T15:04:05Z"),
		imageUuid: uuid.NewString(),
	}

	defer func() {
		teardownErr := state.teardown()
		if teardownErr != nil {
			if err != nil {
				err = fmt.Errorf("%w:\nfailed to tear down:\n%w", err, teardownErr)
			} else {
				err = fmt.Errorf("failed to tear down:\n%w", teardownErr)
			}
		}
	}()

	for _, stage := range provisionStages() {
		err = runStage(ctx, stage, state)
		if err != nil {
			return err
		}
	}

	logger.Log.Infof("Provisioned Alpine %s image on (%s)", config.Release, config.Device)
	return nil
}

func runStage(ctx context.Context, stage provisionStage, state *provisionState) (err error) {
	ctx, span := otel.GetTracerProvider().Tracer(OtelTracerName).Start(ctx, stage.name)
	defer func() {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	logger.Log.Debugf("Running stage (%s)", stage.name)

	return stage.run(ctx, state)
}

// teardown releases everything the stages acquired, in reverse order.
// The cleanup stage releases these on the success path; teardown covers
// failures and is a no-op after a clean run.
func (state *provisionState) teardown() error {
	if state.chroot != nil {
		err := state.chroot.Close(true /*leaveOnDisk*/)
		if err != nil {
			return err
		}
		state.chroot = nil
	}

	if state.targetMount != nil {
		err := state.targetMount.Close()
		if err != nil {
			return err
		}
		state.targetMount = nil
	}

	return nil
}
