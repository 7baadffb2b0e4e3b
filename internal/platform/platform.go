// Copyright 2023 The MaxMQ Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package platform provides the host capabilities used to locate TLS trust
// and identity material. Implementations are injected into the
// configuration so certificate acquisition stays pluggable per target.
package platform

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

var (
	// ErrInvalidAssetName indicates that the asset name is absolute or points
	// outside the image package.
	ErrInvalidAssetName = errors.New("invalid asset name")

	// ErrAssetNotFound indicates that the asset does not exist in the image
	// package.
	ErrAssetNotFound = errors.New("asset not found")

	// ErrDeviceNotProvisioned indicates that no device certificate has been
	// provisioned.
	ErrDeviceNotProvisioned = errors.New("device not provisioned")
)

// Storage resolves logical asset names to absolute paths.
type Storage interface {
	// AbsolutePathInImagePackage returns the absolute path of the asset with
	// the given name.
	AbsolutePathInImagePackage(name string) (string, error)
}

// DeviceAuth gives access to the device identity.
type DeviceAuth interface {
	// CertificatePath returns the path of the device certificate.
	CertificatePath() (string, error)
}

// ImagePackage is a read-only asset store rooted at a directory.
type ImagePackage struct {
	fs   afero.Fs
	root string
}

// NewImagePackage creates an ImagePackage rooted at the given directory. When
// root is empty, the directory of the running executable is used.
func NewImagePackage(fs afero.Fs, root string) (*ImagePackage, error) {
	if root == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("image package root: %w", err)
		}
		root = filepath.Dir(exe)
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("image package root: %w", err)
	}

	return &ImagePackage{fs: fs, root: abs}, nil
}

// Root returns the absolute root directory of the image package.
func (p *ImagePackage) Root() string {
	return p.root
}

// AbsolutePathInImagePackage returns the absolute path of the asset.
func (p *ImagePackage) AbsolutePathInImagePackage(name string) (string, error) {
	if name == "" || path.IsAbs(name) || filepath.IsAbs(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAssetName, name)
	}

	clean := path.Clean(strings.ReplaceAll(name, "\\", "/"))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidAssetName, name)
	}

	full := filepath.Join(p.root, filepath.FromSlash(clean))
	info, err := p.fs.Stat(full)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrAssetNotFound, full)
	}

	return full, nil
}

// FileDeviceAuth is a DeviceAuth backed by a certificate file provisioned
// out-of-band.
type FileDeviceAuth struct {
	fs   afero.Fs
	path string
}

// NewFileDeviceAuth creates a FileDeviceAuth. An empty path means the device
// has not been provisioned.
func NewFileDeviceAuth(fs afero.Fs, path string) *FileDeviceAuth {
	return &FileDeviceAuth{fs: fs, path: path}
}

// CertificatePath returns the path of the device certificate.
func (d *FileDeviceAuth) CertificatePath() (string, error) {
	if d.path == "" {
		return "", ErrDeviceNotProvisioned
	}

	exists, err := afero.Exists(d.fs, d.path)
	if err != nil || !exists {
		return "", fmt.Errorf("%w: %s", ErrDeviceNotProvisioned, d.path)
	}

	return d.path, nil
}
