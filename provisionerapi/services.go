// Copyright (c) the Alpine AMI Tools authors.
// Licensed under the MIT License.

package provisionerapi

import (
	"fmt"

	"github.com/alpine-cloud/alpine-ami-tools/internal/openrc"
	"github.com/alpine-cloud/alpine-ami-tools/internal/userutils"
)

// Services maps OpenRC runlevels to the services enabled in each.
type Services struct {
	Sysinit  []string `yaml:"sysinit"`
	Boot     []string `yaml:"boot"`
	Default  []string `yaml:"default"`
	Shutdown []string `yaml:"shutdown"`
}

func (s *Services) IsValid() error {
	for runlevel, services := range s.ByRunlevel() {
		for _, service := range services {
			// Service names follow the same rules as user names.
			err := userutils.NameIsValid(service)
			if err != nil {
				return fmt.Errorf("runlevel (%s) is invalid:\n%w", runlevel, err)
			}
		}
	}

	return nil
}

// ByRunlevel returns the service lists keyed by runlevel.
func (s *Services) ByRunlevel() map[openrc.Runlevel][]string {
	return map[openrc.Runlevel][]string{
		openrc.RunlevelSysinit:  s.Sysinit,
		openrc.RunlevelBoot:     s.Boot,
		openrc.RunlevelDefault:  s.Default,
		openrc.RunlevelShutdown: s.Shutdown,
	}
}

func defaultServices() Services {
	return Services{
		Sysinit:  []string{"devfs", "dmesg", "mdev", "hwdrivers"},
		Boot:     []string{"modules", "hwclock", "swap", "hostname", "sysctl", "bootmisc", "syslog", "acpid"},
		Default:  []string{"networking", "sshd", "chronyd", "tiny-ec2-bootstrap"},
		Shutdown: []string{"mount-ro", "killprocs", "savecache"},
	}
}
