package filesystem

import (
	"bytes"
	"io"

	"github.com/hearthwood/gitcore/config"
	"github.com/hearthwood/gitcore/storage/filesystem/dotgit"
)

// ConfigStorage implements config.ConfigStorer against the .git/config
// file, reading and writing it through the typed config package.
type ConfigStorage struct {
	dir *dotgit.DotGit
}

func (c *ConfigStorage) Config() (*config.Config, error) {
	f, err := c.dir.Config()
	if err != nil {
		return config.NewConfig(), nil
	}
	defer f.Close()

	b, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return config.NewConfig(), nil
	}

	return config.ReadConfig(bytes.NewReader(b))
}

func (c *ConfigStorage) SetConfig(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	b, err := cfg.Marshal()
	if err != nil {
		return err
	}

	w, err := c.dir.ConfigWriter()
	if err != nil {
		return err
	}
	defer w.Close()

	_, err = w.Write(b)
	return err
}
