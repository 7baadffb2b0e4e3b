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

package mocks

import "github.com/stretchr/testify/mock"

// StorageMock is responsible to mock the platform.Storage.
type StorageMock struct {
	mock.Mock
}

// AbsolutePathInImagePackage returns the absolute path of the asset.
func (s *StorageMock) AbsolutePathInImagePackage(name string) (string, error) {
	ret := s.Called(name)
	return ret.String(0), ret.Error(1)
}

// DeviceAuthMock is responsible to mock the platform.DeviceAuth.
type DeviceAuthMock struct {
	mock.Mock
}

// CertificatePath returns the path of the device certificate.
func (d *DeviceAuthMock) CertificatePath() (string, error) {
	ret := d.Called()
	return ret.String(0), ret.Error(1)
}
