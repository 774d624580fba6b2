package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/theimaginaryfoundation/opinion-amplifier/sd"
)

var modes = []string{"baseline", "policy", "sensitivity", "validate", "equilibrium", "intervention"}

type Config struct {
	Mode       string
	ParamsPath string
	ABMPath    string
	Policy     string
	OutDir     string
	Pretty     bool
	Overwrite  bool
	Trajectory bool
}

func (c Config) Validate() error {
	if !slices.Contains(modes, c.Mode) {
		return fmt.Errorf("unknown -mode %q (want one of %v)", c.Mode, modes)
	}
	if c.OutDir == "" {
		return errors.New("missing -out")
	}
	if c.Policy != "" && !slices.Contains(sd.PolicyNames, c.Policy) {
		return fmt.Errorf("unknown -policy %q (want one of %v)", c.Policy, sd.PolicyNames)
	}
	if c.Policy != "" && c.Mode != "policy" {
		return errors.New("-policy requires -mode policy")
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		Mode:       "baseline",
		OutDir:     filepath.FromSlash("results/sd"),
		Trajectory: true,
	}
}
