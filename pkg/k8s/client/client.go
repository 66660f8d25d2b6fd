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

package client

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"
)

// Interface is kubernetes.Interface, satisfied by the fake clientset in tests.
type Interface = kubernetes.Interface

var (
	clientOnce   sync.Once
	cachedClient Interface
	cachedConfig *rest.Config
	clientErr    error
)

// GetKubeClient returns the process-wide client built from the discovered
// kubeconfig. It is created on first use.
func GetKubeClient() (Interface, *rest.Config, error) {
	clientOnce.Do(func() {
		cachedClient, cachedConfig, clientErr = BuildKubeClient("")
	})
	return cachedClient, cachedConfig, clientErr
}

// ForKubeconfig returns the shared client when kubeconfig is empty and a new
// client for that file otherwise.
func ForKubeconfig(kubeconfig string) (Interface, *rest.Config, error) {
	if kubeconfig == "" {
		return GetKubeClient()
	}
	return BuildKubeClient(kubeconfig)
}

// ResolveKubeconfig returns the kubeconfig file to use: kubeconfig when set,
// then $KUBECONFIG, then ~/.kube/config if it exists. An empty result means
// in-cluster configuration.
func ResolveKubeconfig(kubeconfig string) string {
	if kubeconfig != "" {
		return kubeconfig
	}
	if env := os.Getenv("KUBECONFIG"); env != "" {
		return env
	}
	home := filepath.Join(homedir.HomeDir(), ".kube", "config")
	if _, err := os.Stat(home); err == nil {
		return home
	}
	return ""
}

// BuildKubeClient creates a client from kubeconfig, resolved with
// ResolveKubeconfig. The result is not cached.
func BuildKubeClient(kubeconfig string) (Interface, *rest.Config, error) {
	var (
		config *rest.Config
		err    error
	)

	path := ResolveKubeconfig(kubeconfig)
	if path == "" {
		// avoids the "Neither --kubeconfig nor --master was specified" warning
		config, err = rest.InClusterConfig()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get in-cluster config: %w", err)
		}
	} else {
		config, err = clientcmd.BuildConfigFromFlags("", path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to build kube config from %s: %w", path, err)
		}
	}

	client, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create kubernetes client: %w", err)
	}
	return client, config, nil
}
