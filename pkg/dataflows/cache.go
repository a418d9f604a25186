package dataflows

import (
	"crypto/md5"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// CacheManager handles file-based caching for data
type CacheManager struct {
	cacheDir     string
	ttl          time.Duration
	cacheEnabled bool
	now          func() time.Time
}

// NewCacheManager creates a new cache manager
func NewCacheManager(cacheDir string, ttl time.Duration, cacheEnabled bool) *CacheManager {
	return &CacheManager{
		cacheDir:     cacheDir,
		ttl:          ttl,
		cacheEnabled: cacheEnabled && cacheDir != "",
		now:          time.Now,
	}
}

func (cm *CacheManager) path(source, method string, params any) string {
	data, _ := json.Marshal(params)
	hash := md5.Sum(data)
	return filepath.Join(cm.cacheDir, fmt.Sprintf("%s_%s_%x.json", source, method, hash))
}

// Get retrieves data from cache if not expired
func (cm *CacheManager) Get(source, method string, params any, result any) bool {
	if cm == nil || !cm.cacheEnabled {
		return false
	}
	filePath := cm.path(source, method, params)

	info, err := os.Stat(filePath)
	if err != nil {
		return false
	}
	if cm.now().Sub(info.ModTime()) > cm.ttl {
		_ = os.Remove(filePath)
		return false
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return false
	}
	return json.Unmarshal(data, result) == nil
}

// Set stores data in cache
func (cm *CacheManager) Set(source, method string, params any, data any) error {
	if cm == nil || !cm.cacheEnabled {
		return nil
	}
	if err := os.MkdirAll(cm.cacheDir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	// 先写临时文件再 rename，避免并发读到半截内容
	filePath := cm.path(source, method, params)
	tmp := filePath + ".tmp"
	if err := os.WriteFile(tmp, jsonData, 0o644); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return os.Rename(tmp, filePath)
}
