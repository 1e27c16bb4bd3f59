// Copyright (c) the Alpine AMI Tools authors.
// Licensed under the MIT License.

package resources

import (
	"embed"
)

const (
	// Assets
	AssetsInterfacesFile   = "assets/network/interfaces"
	AssetsPromptFile       = "assets/profile.d/00-ami-prompt.sh"
	AssetsEnaModulesFile   = "assets/mkinitfs/ena.modules"
	AssetsRepositoriesFile = "assets/apk/repositories.template"
)

//go:embed assets
var ResourcesFS embed.FS
