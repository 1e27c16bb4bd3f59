// Copyright (c) the Alpine AMI Tools authors.
// Licensed under the MIT License.

// Package provisionerapi defines the provisioning configuration: compiled-in
// defaults, an optional YAML profile, and environment overrides, resolved in
// that order into an immutable Config.
package provisionerapi

import (
	"fmt"

	"github.com/asaskevich/govalidator"
	"github.com/spf13/viper"
)

const (
	defaultRelease = "v3.22"
	defaultMirror  = "https://dl-cdn.alpinelinux.org/alpine"
	defaultArch    = "x86_64"

	defaultApkToolsURL    = "https://github.com/alpinelinux/apk-tools/releases/download/v2.14.6/apk-tools-2.14.6-x86_64-linux.tar.gz"
	defaultApkToolsSHA256 = "7a7a67e45d081676a979dc78c2a7a2a8eb4d4f4f9deab9b8d29b935d64b9cf0e"

	defaultAlpineKeysURL    = "https://dl-cdn.alpinelinux.org/alpine/v3.22/main/x86_64/alpine-keys-2.5-r0.apk"
	defaultAlpineKeysSHA256 = "1b3e0f2a3b1e7d1675ccd2e7c458caa2f1e5a8d7be6e8ce5a9a2f1d0cc44b5aa"

	defaultNTPServer   = "169.254.169.123"
	defaultBootTimeout = 1
)

// Config is the resolved provisioning configuration. It is built once by
// BuildConfig and not modified afterwards.
type Config struct {
	Device           string
	Release          string
	Mirror           string
	Arch             string
	ApkToolsURL      string
	ApkToolsSHA256   string
	AlpineKeysURL    string
	AlpineKeysSHA256 string
	Packages         []string
	Services         Services
	AdminUser        AdminUser
	NTPServer        string
	BootTimeout      int
}

// Profile is the optional YAML overlay a caller can supply to change the
// compiled-in defaults. Fields left unset keep their defaults.
type Profile struct {
	Release     string     `yaml:"release"`
	Mirror      string     `yaml:"mirror"`
	Packages    []string   `yaml:"packages"`
	Services    *Services  `yaml:"services"`
	AdminUser   *AdminUser `yaml:"adminUser"`
	NTPServer   string     `yaml:"ntpServer"`
	BootTimeout *int       `yaml:"bootTimeout"`
}

func (p *Profile) IsValid() error {
	if p.Services != nil {
		err := p.Services.IsValid()
		if err != nil {
			return err
		}
	}

	if p.AdminUser != nil {
		err := p.AdminUser.IsValid()
		if err != nil {
			return err
		}
	}

	if p.BootTimeout != nil && *p.BootTimeout < 0 {
		return fmt.Errorf("bootTimeout (%d) is invalid: must not be negative", *p.BootTimeout)
	}

	return nil
}

func defaultPackages() []string {
	return []string{
		"linux-virt",
		"alpine-mirrors",
		"chrony",
		"e2fsprogs",
		"openssh",
		"sudo",
		"tzdata",
		"tiny-ec2-bootstrap",
		"ena-driver@testing",
	}
}

func defaultConfig(device string) *Config {
	return &Config{
		Device:           device,
		Release:          defaultRelease,
		Mirror:           defaultMirror,
		Arch:             defaultArch,
		ApkToolsURL:      defaultApkToolsURL,
		ApkToolsSHA256:   defaultApkToolsSHA256,
		AlpineKeysURL:    defaultAlpineKeysURL,
		AlpineKeysSHA256: defaultAlpineKeysSHA256,
		Packages:         defaultPackages(),
		Services:         defaultServices(),
		AdminUser:        defaultAdminUser(),
		NTPServer:        defaultNTPServer,
		BootTimeout:      defaultBootTimeout,
	}
}

// BuildConfig resolves the configuration for the given target device.
// Precedence, lowest to highest: compiled-in defaults, the YAML profile,
// environment variables.
func BuildConfig(device string, profilePath string) (*Config, error) {
	config := defaultConfig(device)

	if profilePath != "" {
		profile := &Profile{}
		err := UnmarshalAndValidateYamlFile(profilePath, profile)
		if err != nil {
			return nil, fmt.Errorf("failed to load profile (%s):\n%w", profilePath, err)
		}

		profile.applyTo(config)
	}

	applyEnvOverrides(config)

	err := config.IsValid()
	if err != nil {
		return nil, err
	}

	return config, nil
}

func (p *Profile) applyTo(config *Config) {
	if p.Release != "" {
		config.Release = p.Release
	}
	if p.Mirror != "" {
		config.Mirror = p.Mirror
	}
	if p.Packages != nil {
		config.Packages = p.Packages
	}
	if p.Services != nil {
		config.Services = *p.Services
	}
	if p.AdminUser != nil {
		config.AdminUser = *p.AdminUser
	}
	if p.NTPServer != "" {
		config.NTPServer = p.NTPServer
	}
	if p.BootTimeout != nil {
		config.BootTimeout = *p.BootTimeout
	}
}

// applyEnvOverrides layers the environment variables the build pipelines set
// on top of the resolved values.
func applyEnvOverrides(config *Config) {
	v := viper.New()

	v.SetDefault("release", config.Release)
	v.SetDefault("apkToolsUrl", config.ApkToolsURL)
	v.SetDefault("apkToolsSha256", config.ApkToolsSHA256)
	v.SetDefault("alpineKeysUrl", config.AlpineKeysURL)
	v.SetDefault("alpineKeysSha256", config.AlpineKeysSHA256)

	v.BindEnv("release", "ALPINE_RELEASE")
	v.BindEnv("apkToolsUrl", "APK_TOOLS_URI")
	v.BindEnv("apkToolsSha256", "APK_TOOLS_SHA256")
	v.BindEnv("alpineKeysUrl", "ALPINE_KEYS_URI")
	v.BindEnv("alpineKeysSha256", "ALPINE_KEYS_SHA256")

	config.Release = v.GetString("release")
	config.ApkToolsURL = v.GetString("apkToolsUrl")
	config.ApkToolsSHA256 = v.GetString("apkToolsSha256")
	config.AlpineKeysURL = v.GetString("alpineKeysUrl")
	config.AlpineKeysSHA256 = v.GetString("alpineKeysSha256")
}

func (c *Config) IsValid() error {
	if c.Device == "" {
		return fmt.Errorf("config is invalid: device must be set")
	}

	if c.Release == "" {
		return fmt.Errorf("config is invalid: release must be set")
	}

	for name, url := range map[string]string{
		"apk-tools":   c.ApkToolsURL,
		"alpine-keys": c.AlpineKeysURL,
	} {
		if !govalidator.IsRequestURL(url) {
			return fmt.Errorf("config is invalid: %s URL (%s) is not a valid URL", name, url)
		}
	}

	for name, digest := range map[string]string{
		"apk-tools":   c.ApkToolsSHA256,
		"alpine-keys": c.AlpineKeysSHA256,
	} {
		if !govalidator.IsHash(digest, "sha256") {
			return fmt.Errorf("config is invalid: %s checksum (%s) is not a sha256 digest", name, digest)
		}
	}

	if len(c.Packages) == 0 {
		return fmt.Errorf("config is invalid: package list must not be empty")
	}

	err := c.Services.IsValid()
	if err != nil {
		return fmt.Errorf("config is invalid:\n%w", err)
	}

	err = c.AdminUser.IsValid()
	if err != nil {
		return fmt.Errorf("config is invalid:\n%w", err)
	}

	if c.BootTimeout < 0 {
		return fmt.Errorf("config is invalid: boot timeout (%d) must not be negative", c.BootTimeout)
	}

	return nil
}
