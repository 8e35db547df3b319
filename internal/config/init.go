package config

import (
	"os"
	"path/filepath"

	ferrors "git.home.luguber.info/inful/wikibuilder/internal/foundation/errors"
)

const exampleConfig = `# Site settings, exposed to templates as "site".
url: ""
title: "My Wiki"
keywords: "wiki, notes"
description: "Personal knowledge base"
author: "${USER}"
root: /

source: content
destination: output
themes_dir: themes
theme: simple
default_ext: md

# Renderer extensions. Leave empty to use the legacy pygments switch.
markdown:
  - fenced_code
  - extra
  - toc
unsafe_html: false
sanitize: false

include_drafts: false
workers: 0
log_level: info
log_format: text
# metrics_file: output/metrics.prom

watch:
  queue_size: 64
  coalesce: 0s
  full_rebuild_interval: 0s

serve:
  port: 8000
`

// Init writes an example configuration file to path. An existing file is
// kept unless force is set.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return ferrors.ConfigError("configuration file already exists (use --force to overwrite)").
			WithContext("path", path).Build()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return ferrors.FileSystemError("create configuration directory").
			WithContext("path", path).WithCause(err).Build()
	}
	if err := os.WriteFile(path, []byte(exampleConfig), 0o600); err != nil {
		return ferrors.FileSystemError("write configuration file").
			WithContext("path", path).WithCause(err).Build()
	}
	return nil
}
