// Package vault stores per-user artifacts (images and text files) on the
// local filesystem, laid out as <base>/<phone>/{documents,texts}. Artifacts
// are write-once; listings are sorted by name so selection ordinals are
// stable across platforms.
package vault

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	waLog "go.mau.fi/whatsmeow/util/log"
)

type Kind string

const (
	KindImage Kind = "image"
	KindText  Kind = "text"
)

// ErrSelectionOutOfRange is returned by GetByOrdinal for ordinals outside
// [1, count].
var ErrSelectionOutOfRange = errors.New("vault: selection out of range")

var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true}

type Vault struct {
	base string
	log  waLog.Logger
}

func New(base string, log waLog.Logger) *Vault {
	return &Vault{base: base, log: log}
}

func (v *Vault) dirFor(owner string, kind Kind) string {
	sub := "texts"
	if kind == KindImage {
		sub = "documents"
	}
	return filepath.Join(v.base, owner, sub)
}

// ensureOwner provisions the owner's storage namespace. Idempotent.
func (v *Vault) ensureOwner(owner string) error {
	for _, kind := range []Kind{KindImage, KindText} {
		if err := os.MkdirAll(v.dirFor(owner, kind), 0o755); err != nil {
			return fmt.Errorf("ensure dir for %s: %w", owner, err)
		}
	}
	return nil
}

// sanitizeName keeps display names safe as file names. Anything outside a
// conservative set becomes '_'.
func sanitizeName(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '_' || r == '-' || r == ' ':
			b.WriteRune(r)
		case r >= 0x0590 && r <= 0x05FF: // Hebrew block
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "unnamed"
	}
	return strings.TrimSpace(b.String())
}

// handleFor picks the storage file name for a new artifact. Display names are
// not unique per owner; a collision gets a short random suffix instead of
// overwriting the earlier artifact.
func (v *Vault) handleFor(dir, name, ext string) string {
	handle := sanitizeName(name) + ext
	if _, err := os.Stat(filepath.Join(dir, handle)); errors.Is(err, os.ErrNotExist) {
		return handle
	}
	return fmt.Sprintf("%s-%s%s", sanitizeName(name), uuid.NewString()[:8], ext)
}

// writeAtomic lands content via a temp file and rename so a crash mid-write
// never leaves a partial artifact in a listing.
func writeAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("write temp for %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp for %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp for %s: %w", path, err)
	}
	return nil
}

// SaveImage stores image bytes under the given display name and returns the
// storage handle (the file name, .jpg suffixed).
func (v *Vault) SaveImage(owner, name string, data []byte) (string, error) {
	if err := v.ensureOwner(owner); err != nil {
		return "", err
	}
	dir := v.dirFor(owner, KindImage)
	handle := v.handleFor(dir, name, ".jpg")
	if err := writeAtomic(filepath.Join(dir, handle), data); err != nil {
		return "", err
	}
	v.log.Infof("Saved image %q for %s", handle, owner)
	return handle, nil
}

// SaveText stores text content under the given display name and returns the
// storage handle (.txt suffixed).
func (v *Vault) SaveText(owner, name, content string) (string, error) {
	if err := v.ensureOwner(owner); err != nil {
		return "", err
	}
	dir := v.dirFor(owner, KindText)
	handle := v.handleFor(dir, name, ".txt")
	if err := writeAtomic(filepath.Join(dir, handle), []byte(content)); err != nil {
		return "", err
	}
	v.log.Infof("Saved text %q for %s", handle, owner)
	return handle, nil
}

// List returns the owner's artifact names of the given kind, sorted
// lexicographically. A missing namespace is an empty listing, not an error.
func (v *Vault) List(owner string, kind Kind) ([]string, error) {
	entries, err := os.ReadDir(v.dirFor(owner, kind))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s artifacts for %s: %w", kind, owner, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		switch kind {
		case KindImage:
			if imageExts[ext] {
				names = append(names, e.Name())
			}
		case KindText:
			if ext == ".txt" {
				names = append(names, e.Name())
			}
		}
	}
	sort.Strings(names)
	return names, nil
}

// GetByOrdinal reads the n-th artifact (1-indexed) of the current listing.
func (v *Vault) GetByOrdinal(owner string, kind Kind, n int) (string, []byte, error) {
	names, err := v.List(owner, kind)
	if err != nil {
		return "", nil, err
	}
	if n < 1 || n > len(names) {
		return "", nil, fmt.Errorf("%w: %d of %d", ErrSelectionOutOfRange, n, len(names))
	}
	name := names[n-1]
	data, err := os.ReadFile(filepath.Join(v.dirFor(owner, kind), name))
	if err != nil {
		return "", nil, fmt.Errorf("read artifact %s: %w", name, err)
	}
	return name, data, nil
}
