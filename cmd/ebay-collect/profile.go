package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// profile is a saved search read from a YAML file. Flags given on the
// command line take precedence over its values.
type profile struct {
	AppID    string `yaml:"app_id"`
	Endpoint string `yaml:"endpoint"`

	Search struct {
		Keywords    string  `yaml:"keywords"`
		Exclude     string  `yaml:"exclude"`
		MinPrice    float64 `yaml:"min_price"`
		MaxPrice    float64 `yaml:"max_price"`
		ListingType string  `yaml:"listing_type"`
		Condition   string  `yaml:"condition"`
		Sort        string  `yaml:"sort"`
		USAOnly     *bool   `yaml:"usa_only"`
		Category    string  `yaml:"category"`
	} `yaml:"search"`

	Collect struct {
		Pages       int           `yaml:"pages"`
		Concurrent  bool          `yaml:"concurrent"`
		Workers     int           `yaml:"workers"`
		StartPage   int           `yaml:"start_page"`
		Delay       time.Duration `yaml:"delay"`
		MaxFailures int           `yaml:"max_failures"`
	} `yaml:"collect"`

	Output struct {
		Format string `yaml:"format"`
		File   string `yaml:"file"`
	} `yaml:"output"`
}

// loadProfile reads a YAML search profile.
func loadProfile(path string) (*profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}

	var p profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", path, err)
	}
	return &p, nil
}

// apply copies profile values into opts for every flag not in set.
func (p *profile) apply(opts *options, format *string, set map[string]bool) {
	str := func(flag string, dst *string, v string) {
		if !set[flag] && v != "" {
			*dst = v
		}
	}
	num := func(flag string, dst *int, v int) {
		if !set[flag] && v != 0 {
			*dst = v
		}
	}
	price := func(flag string, dst *float64, v float64) {
		if !set[flag] && v != 0 {
			*dst = v
		}
	}

	str("app-id", &opts.appID, p.AppID)
	str("endpoint", &opts.endpoint, p.Endpoint)

	str("keywords", &opts.search.Keywords, p.Search.Keywords)
	str("exclude", &opts.search.ExcludeWords, p.Search.Exclude)
	price("min-price", &opts.search.MinPrice, p.Search.MinPrice)
	price("max-price", &opts.search.MaxPrice, p.Search.MaxPrice)
	str("listing-type", &opts.search.ListingType, p.Search.ListingType)
	str("condition", &opts.search.Condition, p.Search.Condition)
	str("sort", &opts.search.SortOrder, p.Search.Sort)
	str("category", &opts.search.CategoryID, p.Search.Category)
	if !set["usa-only"] && p.Search.USAOnly != nil {
		opts.search.USAOnly = *p.Search.USAOnly
	}

	num("pages", &opts.pages, p.Collect.Pages)
	num("workers", &opts.workers, p.Collect.Workers)
	num("start-page", &opts.startPage, p.Collect.StartPage)
	num("max-failures", &opts.maxFailures, p.Collect.MaxFailures)
	if !set["concurrent"] && p.Collect.Concurrent {
		opts.concurrent = true
	}
	if !set["delay"] && p.Collect.Delay > 0 {
		opts.delay = p.Collect.Delay
	}

	str("format", format, p.Output.Format)
	str("output", &opts.output, p.Output.File)
}
