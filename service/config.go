package service

import (
	"path/filepath"
	"time"
)

type Config struct {
	// DataDir holds the pebble state store and the operation journal.
	DataDir string

	JournalSegmentSize int64
	CompactionInterval time.Duration
}

func DefaultConfig(dataDir string) Config {
	return Config{
		DataDir:            dataDir,
		JournalSegmentSize: 4 * 1024 * 1024,
		CompactionInterval: 30 * time.Second,
	}
}

func (c Config) statePath() string {
	return filepath.Join(c.DataDir, "state")
}

func (c Config) journalPath() string {
	return filepath.Join(c.DataDir, "journal")
}
