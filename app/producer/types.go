package producer

// Config describes one monitored producer, loaded from
// <producers-dir>/<name>.yml.
type Config struct {
	Name string `yaml:"-"`

	UID     string `yaml:"uid"`
	Enabled *bool  `yaml:"enabled"`

	Settings Settings `yaml:"settings"`
}

type Settings struct {
	AutoDownload    bool   `yaml:"auto_download"`
	DownloadAtFirst *bool  `yaml:"download_at_first"`
	AutoComment     string `yaml:"auto_comment"`
}

// IsEnabled treats a missing `enabled` key as true.
func (c *Config) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// DownloadsAtFirst reports whether media of a first-observation backlog is
// downloaded. Defaults to the auto_download setting when unset.
func (c *Config) DownloadsAtFirst() bool {
	if c.Settings.DownloadAtFirst == nil {
		return c.Settings.AutoDownload
	}
	return *c.Settings.DownloadAtFirst
}
