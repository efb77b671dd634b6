package client

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/oceanbase/mindshard-go/pkg/core"
)

// catalog is the persisted part of the registry: knowledge bases created
// at runtime and every group except AllGroup.
type catalog struct {
	KnowledgeBases []string            `json:"knowledge_bases"`
	Groups         map[string][]string `json:"groups"`
}

func readCatalog(path string) (*catalog, error) {
	cat := &catalog{Groups: map[string][]string{}}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cat, nil
	}
	if err != nil {
		return nil, core.NewMemoryError("ReadCatalog", err)
	}
	if err := json.Unmarshal(data, cat); err != nil {
		return nil, core.Errorf("ReadCatalog", core.ErrInvalidConfig, "%s: %v", path, err)
	}
	return cat, nil
}

func writeCatalog(path string, cat *catalog) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return core.NewMemoryError("WriteCatalog", err)
		}
	}
	data, err := json.MarshalIndent(cat, "", "  ")
	if err != nil {
		return core.NewMemoryError("WriteCatalog", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return core.NewMemoryError("WriteCatalog", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return core.NewMemoryError("WriteCatalog", err)
	}
	return nil
}

// loadCatalog registers the knowledge bases and groups recorded in the
// catalog. Entries that no longer fit the configuration are skipped.
func (c *Client) loadCatalog() error {
	if c.config.CatalogPath == "" {
		return nil
	}
	cat, err := readCatalog(c.config.CatalogPath)
	if err != nil {
		return err
	}

	for _, kb := range cat.KnowledgeBases {
		if _, err := c.registry.GetInstance(kb); err == nil {
			continue
		}
		if err := c.register(kb, c.config.Digestor.ChunkSize, c.config.Digestor.ChunkOverlap); err != nil {
			return err
		}
		if err := c.registry.AddToGroup(AllGroup, kb); err != nil {
			return err
		}
	}

	for gid, members := range cat.Groups {
		if gid == AllGroup {
			continue
		}
		if err := c.registry.CreateGroup(gid, members); err != nil {
			c.logger.Warn("skipping catalog group", slog.String("group", gid), slog.Any("error", err))
		}
	}
	return nil
}

// saveCatalog records the current registry. Failures are logged: the
// in-memory registry is already updated.
func (c *Client) saveCatalog() {
	if c.config.CatalogPath == "" {
		return
	}

	cat := &catalog{KnowledgeBases: []string{}, Groups: map[string][]string{}}
	configured := make(map[string]bool, len(c.config.KnowledgeBases))
	for _, kb := range c.config.KnowledgeBases {
		configured[kb] = true
	}
	for _, kb := range c.registry.ListInstances() {
		if !configured[kb] {
			cat.KnowledgeBases = append(cat.KnowledgeBases, kb)
		}
	}
	for _, gid := range c.registry.ListGroups() {
		if gid == AllGroup {
			continue
		}
		if members, err := c.registry.GroupMembers(gid); err == nil {
			cat.Groups[gid] = members
		}
	}

	if err := writeCatalog(c.config.CatalogPath, cat); err != nil {
		c.logger.Warn("saving catalog failed", slog.String("path", c.config.CatalogPath), slog.Any("error", err))
	}
}
