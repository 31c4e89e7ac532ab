package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"syscall"

	"github.com/moqtransport/relaycore/internal/namespace"
)

// fileData is the JSON document shared by every relay instance that
// points at the same coordination file.
type fileData struct {
	// Namespaces maps a namespace's path form to the URL of the relay
	// serving it.
	Namespaces map[string]string `json:"namespaces"`
}

// FileCoordinator coordinates namespace registration across relay
// instances that share a filesystem path, using an advisory lock to
// serialize concurrent readers and writers. It needs no separate
// registry process, which makes it a reasonable default for small
// clusters on a shared volume.
//
// No third-party advisory-file-locking library appears anywhere in the
// retrieved example pack (mpisat-qumo's SDN registry and the original
// relay's file coordinator both lock in-process only, via a Rust crate
// with no Go analogue present here), so this uses syscall.Flock
// directly rather than inventing a dependency that isn't grounded in
// anything the corpus actually reaches for.
type FileCoordinator struct {
	path     string
	relayURL *url.URL
}

// NewFileCoordinator returns a coordinator backed by the JSON document
// at path, shared by every relay instance configured with the same
// path. relayURL is advertised as the origin of namespaces this
// instance registers.
func NewFileCoordinator(path string, relayURL *url.URL) *FileCoordinator {
	return &FileCoordinator{path: path, relayURL: relayURL}
}

func namespaceKey(ns namespace.Namespace) string { return ns.Path() }

func (c *FileCoordinator) withLock(exclusive bool, fn func(*os.File) error) error {
	f, err := os.OpenFile(c.path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("open coordination file: %w", err)
	}
	defer f.Close()

	op := syscall.LOCK_SH
	if exclusive {
		op = syscall.LOCK_EX
	}
	if err := syscall.Flock(int(f.Fd()), op); err != nil {
		return fmt.Errorf("lock coordination file: %w", err)
	}
	defer syscall.Flock(int(f.Fd()), syscall.LOCK_UN)

	return fn(f)
}

func readFileData(f *os.File) (fileData, error) {
	var data fileData
	if _, err := f.Seek(0, 0); err != nil {
		return data, err
	}
	info, err := f.Stat()
	if err != nil {
		return data, err
	}
	if info.Size() == 0 {
		data.Namespaces = make(map[string]string)
		return data, nil
	}
	buf := make([]byte, info.Size())
	if _, err := io.ReadFull(f, buf); err != nil {
		return data, err
	}
	if err := json.Unmarshal(buf, &data); err != nil {
		return data, fmt.Errorf("decode coordination file: %w", err)
	}
	if data.Namespaces == nil {
		data.Namespaces = make(map[string]string)
	}
	return data, nil
}

func writeFileData(f *os.File, data fileData) error {
	buf, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode coordination file: %w", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Write(buf); err != nil {
		return err
	}
	return f.Sync()
}

// runOffThread runs fn on its own goroutine so that callers holding the
// control-stream goroutine never block the session loop on file I/O,
// while still honoring ctx cancellation.
func runOffThread(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

type fileRegistration struct {
	coord *FileCoordinator
	ns    namespace.Namespace
}

func (r *fileRegistration) Close(ctx context.Context) error {
	return r.coord.UnregisterNamespace(ctx, r.ns)
}

// RegisterNamespace implements Coordinator.
func (c *FileCoordinator) RegisterNamespace(ctx context.Context, ns namespace.Namespace) (Registration, error) {
	err := runOffThread(ctx, func() error {
		return c.withLock(true, func(f *os.File) error {
			data, err := readFileData(f)
			if err != nil {
				return err
			}
			data.Namespaces[namespaceKey(ns)] = c.relayURL.String()
			return writeFileData(f, data)
		})
	})
	if err != nil {
		return nil, &OtherError{Op: "register_namespace", Err: err}
	}
	return &fileRegistration{coord: c, ns: ns}, nil
}

// UnregisterNamespace implements Coordinator.
func (c *FileCoordinator) UnregisterNamespace(ctx context.Context, ns namespace.Namespace) error {
	err := runOffThread(ctx, func() error {
		return c.withLock(true, func(f *os.File) error {
			data, err := readFileData(f)
			if err != nil {
				return err
			}
			delete(data.Namespaces, namespaceKey(ns))
			return writeFileData(f, data)
		})
	})
	if err != nil {
		return &OtherError{Op: "unregister_namespace", Err: err}
	}
	return nil
}

// Lookup implements Coordinator, matching the exact namespace first and
// falling back to the longest registered prefix.
func (c *FileCoordinator) Lookup(ctx context.Context, ns namespace.Namespace) (Origin, error) {
	var origin Origin
	found := false

	err := runOffThread(ctx, func() error {
		return c.withLock(false, func(f *os.File) error {
			data, err := readFileData(f)
			if err != nil {
				return err
			}

			key := namespaceKey(ns)
			if raw, ok := data.Namespaces[key]; ok {
				u, err := url.Parse(raw)
				if err != nil {
					return fmt.Errorf("parse registered relay url: %w", err)
				}
				origin = Origin{Namespace: ns, URL: u}
				found = true
				return nil
			}

			var bestKey, bestRaw string
			for registeredKey, raw := range data.Namespaces {
				if !isPathPrefix(registeredKey, key) {
					continue
				}
				if len(registeredKey) > len(bestKey) {
					bestKey, bestRaw = registeredKey, raw
				}
			}
			if bestKey == "" {
				return nil
			}
			u, err := url.Parse(bestRaw)
			if err != nil {
				return fmt.Errorf("parse registered relay url: %w", err)
			}
			matched, err := namespace.FromPath(bestKey)
			if err != nil {
				return err
			}
			origin = Origin{Namespace: matched, URL: u}
			found = true
			return nil
		})
	})
	if err != nil {
		return Origin{}, &OtherError{Op: "lookup", Err: err}
	}
	if !found {
		return Origin{}, ErrNamespaceNotFound
	}
	return origin, nil
}

// isPathPrefix reports whether prefix's slash-delimited segments are an
// element-wise prefix of key's segments.
func isPathPrefix(prefix, key string) bool {
	pParts := strings.Split(strings.Trim(prefix, "/"), "/")
	kParts := strings.Split(strings.Trim(key, "/"), "/")
	if len(pParts) > len(kParts) {
		return false
	}
	for i, p := range pParts {
		if p != kParts[i] {
			return false
		}
	}
	return true
}

// Shutdown implements Coordinator. The coordination file needs no
// explicit close: every access opens and releases its own handle.
func (c *FileCoordinator) Shutdown(context.Context) error { return nil }
