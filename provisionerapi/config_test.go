// Copyright (c) the Alpine AMI Tools authors.
// Licensed under the MIT License.

package provisionerapi

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alpine-cloud/alpine-ami-tools/internal/logger"
	"github.com/stretchr/testify/assert"
)

func TestMain(m *testing.M) {
	logger.InitStderrLog()
	os.Exit(m.Run())
}

func TestBuildConfigDefaults(t *testing.T) {
	config, err := BuildConfig("/dev/xvdf", "")
	assert.NoError(t, err)

	assert.Equal(t, "/dev/xvdf", config.Device)
	assert.Equal(t, defaultRelease, config.Release)
	assert.Equal(t, "alpine", config.AdminUser.Name)
	assert.Equal(t, "wheel", config.AdminUser.PrivilegedGroup)
	assert.Contains(t, config.Packages, "linux-virt")
	assert.Contains(t, config.Packages, "ena-driver@testing")
	assert.Contains(t, config.Services.Default, "tiny-ec2-bootstrap")
	assert.Equal(t, "169.254.169.123", config.NTPServer)
}

func TestBuildConfigEnvOverrides(t *testing.T) {
	t.Setenv("ALPINE_RELEASE", "v3.21")
	t.Setenv("APK_TOOLS_SHA256", strings.Repeat("ab", 32))

	config, err := BuildConfig("/dev/xvdf", "")
	assert.NoError(t, err)

	assert.Equal(t, "v3.21", config.Release)
	assert.Equal(t, strings.Repeat("ab", 32), config.ApkToolsSHA256)

	// Unset variables keep their defaults.
	assert.Equal(t, defaultApkToolsURL, config.ApkToolsURL)
}

func TestBuildConfigEnvRejectsBadChecksum(t *testing.T) {
	t.Setenv("APK_TOOLS_SHA256", "not-a-digest")

	_, err := BuildConfig("/dev/xvdf", "")
	assert.ErrorContains(t, err, "sha256")
}

func TestBuildConfigProfileOverrides(t *testing.T) {
	profilePath := filepath.Join(t.TempDir(), "profile.yaml")
	profileYaml := `
release: v3.20
adminUser:
  name: ec2-user
  homeDirectory: /home/ec2-user
  shell: /bin/sh
  privilegedGroup: wheel
bootTimeout: 3
`
	err := os.WriteFile(profilePath, []byte(profileYaml), 0o644)
	assert.NoError(t, err)

	config, err := BuildConfig("/dev/xvdf", profilePath)
	assert.NoError(t, err)

	assert.Equal(t, "v3.20", config.Release)
	assert.Equal(t, "ec2-user", config.AdminUser.Name)
	assert.Equal(t, 3, config.BootTimeout)

	// Unset profile fields keep their defaults.
	assert.Equal(t, defaultMirror, config.Mirror)
	assert.Equal(t, defaultServices(), config.Services)
}

func TestBuildConfigProfileEnvPrecedence(t *testing.T) {
	t.Setenv("ALPINE_RELEASE", "v3.21")

	profilePath := filepath.Join(t.TempDir(), "profile.yaml")
	err := os.WriteFile(profilePath, []byte("release: v3.20\n"), 0o644)
	assert.NoError(t, err)

	config, err := BuildConfig("/dev/xvdf", profilePath)
	assert.NoError(t, err)

	// Environment wins over the profile.
	assert.Equal(t, "v3.21", config.Release)
}

func TestBuildConfigProfileRejectsUnknownFields(t *testing.T) {
	profilePath := filepath.Join(t.TempDir(), "profile.yaml")
	err := os.WriteFile(profilePath, []byte("notAField: true\n"), 0o644)
	assert.NoError(t, err)

	_, err = BuildConfig("/dev/xvdf", profilePath)
	assert.ErrorContains(t, err, "notAField")
}

func TestBuildConfigProfileRejectsRootAdmin(t *testing.T) {
	profilePath := filepath.Join(t.TempDir(), "profile.yaml")
	err := os.WriteFile(profilePath, []byte("adminUser:\n  name: root\n"), 0o644)
	assert.NoError(t, err)

	_, err = BuildConfig("/dev/xvdf", profilePath)
	assert.ErrorContains(t, err, "root")
}

func TestAdminUserValidation(t *testing.T) {
	user := defaultAdminUser()
	assert.NoError(t, user.IsValid())

	user.HomeDirectory = "home/alpine"
	assert.ErrorContains(t, user.IsValid(), "must be absolute")

	user = defaultAdminUser()
	user.Name = "Bad Name"
	assert.ErrorContains(t, user.IsValid(), "invalid name")
}

func TestServicesValidation(t *testing.T) {
	services := defaultServices()
	assert.NoError(t, services.IsValid())

	services.Default = append(services.Default, "bad name")
	assert.Error(t, services.IsValid())
}
