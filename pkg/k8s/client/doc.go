// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
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

// Package client builds the Kubernetes client used to publish run reports as
// ConfigMaps.
//
// Configuration is discovered in order from an explicit kubeconfig path,
// the KUBECONFIG environment variable, ~/.kube/config and finally the
// in-cluster service account, so the harness works both on a bare GPU host
// and as a Job on a Kubernetes node:
//
//	c, _, err := client.GetKubeClient()
//	if err != nil {
//	    return fmt.Errorf("failed to get kubernetes client: %w", err)
//	}
package client
