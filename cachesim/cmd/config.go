package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sarchlab/cachesim/mem/cache"
)

// configFile is the YAML form of a cache config. Policy names are parsed
// case-insensitively.
type configFile struct {
	CacheSizeBytes          *int    `yaml:"cacheSizeBytes"`
	BlockSizeBytes          *int    `yaml:"blockSizeBytes"`
	Associativity           *int    `yaml:"associativity"`
	ReplacementPolicy       *string `yaml:"replacementPolicy"`
	WritePolicy             *string `yaml:"writePolicy"`
	WriteMissPolicy         *string `yaml:"writeMissPolicy"`
	AddressWidth            *int    `yaml:"addressWidth"`
	RandomSeed              *uint64 `yaml:"randomSeed"`
	ResetStatsOnReconfigure *bool   `yaml:"resetStatsOnReconfigure"`
}

// parseConfig reads a YAML config. Fields that are not given keep the
// default values. Unknown fields are an error.
func parseConfig(r io.Reader) (cache.Config, error) {
	c := cache.DefaultConfig()

	data, err := io.ReadAll(r)
	if err != nil {
		return c, err
	}

	var f configFile

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return c, fmt.Errorf("parsing config: %w", err)
	}

	if err := f.applyTo(&c); err != nil {
		return c, err
	}

	return c, nil
}

func (f configFile) applyTo(c *cache.Config) error {
	setInt(&c.CacheSizeBytes, f.CacheSizeBytes)
	setInt(&c.BlockSizeBytes, f.BlockSizeBytes)
	setInt(&c.Associativity, f.Associativity)
	setInt(&c.AddressWidth, f.AddressWidth)

	if f.RandomSeed != nil {
		c.RandomSeed = *f.RandomSeed
	}

	if f.ResetStatsOnReconfigure != nil {
		c.ResetStatsOnReconfigure = *f.ResetStatsOnReconfigure
	}

	return applyPolicies(c, f.ReplacementPolicy, f.WritePolicy,
		f.WriteMissPolicy)
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func applyPolicies(
	c *cache.Config,
	replacement, write, writeMiss *string,
) error {
	var err error

	if replacement != nil {
		if c.ReplacementPolicy, err =
			cache.ParseReplacementPolicy(*replacement); err != nil {
			return err
		}
	}

	if write != nil {
		if c.WritePolicy, err = cache.ParseWritePolicy(*write); err != nil {
			return err
		}
	}

	if writeMiss != nil {
		if c.WriteMissPolicy, err =
			cache.ParseWriteMissPolicy(*writeMiss); err != nil {
			return err
		}
	}

	return nil
}

// configFlags are the flags that override single fields of the config.
type configFlags struct {
	cacheSize     int
	blockSize     int
	associativity int
	addressWidth  int
	seed          uint64
	resetStats    bool
	replacement   string
	writePolicy   string
	missPolicy    string
}

func addConfigFlags(cmd *cobra.Command) *configFlags {
	f := &configFlags{}
	d := cache.DefaultConfig()
	flags := cmd.Flags()

	flags.IntVar(&f.cacheSize, "cache-size", d.CacheSizeBytes,
		"Cache size in bytes")
	flags.IntVar(&f.blockSize, "block-size", d.BlockSizeBytes,
		"Block size in bytes")
	flags.IntVar(&f.associativity, "associativity", d.Associativity,
		"Number of ways per set")
	flags.IntVar(&f.addressWidth, "address-width", d.AddressWidth,
		"Number of address bits")
	flags.Uint64Var(&f.seed, "seed", d.RandomSeed,
		"Seed of the RANDOM replacement policy")
	flags.BoolVar(&f.resetStats, "reset-stats", d.ResetStatsOnReconfigure,
		"Reset the statistics when the cache is reconfigured")
	flags.StringVar(&f.replacement, "replacement",
		string(d.ReplacementPolicy), "Replacement policy (LRU, FIFO, RANDOM)")
	flags.StringVar(&f.writePolicy, "write-policy", string(d.WritePolicy),
		"Default write policy (WRITE_BACK, WRITE_THROUGH)")
	flags.StringVar(&f.missPolicy, "miss-policy", string(d.WriteMissPolicy),
		"Default write-miss policy (WRITE_ALLOCATE, NO_WRITE_ALLOCATE)")

	return f
}

// resolveConfig loads the config file, if any, and applies the flags that
// were set on the command line. The result is validated.
func (f *configFlags) resolveConfig(cmd *cobra.Command) (cache.Config, error) {
	c := cache.DefaultConfig()

	if configPath != "" {
		file, err := os.Open(configPath)
		if err != nil {
			return c, err
		}
		defer file.Close()

		if c, err = parseConfig(file); err != nil {
			return c, fmt.Errorf("%s: %w", configPath, err)
		}
	}

	flags := cmd.Flags()
	changed := flags.Changed

	if changed("cache-size") {
		c.CacheSizeBytes = f.cacheSize
	}

	if changed("block-size") {
		c.BlockSizeBytes = f.blockSize
	}

	if changed("associativity") {
		c.Associativity = f.associativity
	}

	if changed("address-width") {
		c.AddressWidth = f.addressWidth
	}

	if changed("seed") {
		c.RandomSeed = f.seed
	}

	if changed("reset-stats") {
		c.ResetStatsOnReconfigure = f.resetStats
	}

	err := applyPolicies(&c,
		changedString(cmd, "replacement", f.replacement),
		changedString(cmd, "write-policy", f.writePolicy),
		changedString(cmd, "miss-policy", f.missPolicy))
	if err != nil {
		return c, err
	}

	return c, c.Validate()
}

func changedString(cmd *cobra.Command, name, value string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}

	return &value
}
