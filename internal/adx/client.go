// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package adx talks to Azure Data Explorer: it manages target tables and
// streams CSV chunks into them. Connections are cached per cluster so a
// worker serving tasks with different targets does not rebuild clients.
package adx

import (
	"fmt"
	"sync"

	"github.com/Azure/azure-kusto-go/kusto"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
)

// Factory creates and caches Kusto clients and ingestors.
type Factory struct {
	cfg *Config

	mu        sync.RWMutex
	clients   map[string]*kusto.Client
	ingestors map[string]*Ingestor
}

// NewFactory creates a factory using the given configuration for
// authentication and retry behavior.
func NewFactory(cfg *Config) *Factory {
	return &Factory{
		cfg:       cfg,
		clients:   make(map[string]*kusto.Client),
		ingestors: make(map[string]*Ingestor),
	}
}

// Ingestor returns an ingestor bound to the given cluster and database,
// creating and caching it on first use.
func (f *Factory) Ingestor(clusterURI, database string) (*Ingestor, error) {
	key := clusterURI + "|" + database

	f.mu.RLock()
	if ing, ok := f.ingestors[key]; ok {
		f.mu.RUnlock()
		return ing, nil
	}
	f.mu.RUnlock()

	client, err := f.client(clusterURI)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if ing, ok := f.ingestors[key]; ok {
		return ing, nil
	}
	ing := newIngestor(f.cfg, client, database)
	f.ingestors[key] = ing
	return ing, nil
}

// client returns a cached Kusto client for the cluster, creating one if needed.
func (f *Factory) client(clusterURI string) (*kusto.Client, error) {
	f.mu.RLock()
	if c, ok := f.clients[clusterURI]; ok {
		f.mu.RUnlock()
		return c, nil
	}
	f.mu.RUnlock()

	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.clients[clusterURI]; ok {
		return c, nil
	}
	c, err := f.newClient(clusterURI)
	if err != nil {
		return nil, err
	}
	f.clients[clusterURI] = c
	return c, nil
}

func (f *Factory) newClient(clusterURI string) (*kusto.Client, error) {
	kcsb := kusto.NewConnectionStringBuilder(clusterURI)

	if f.cfg.Credential != nil {
		client, err := kusto.New(kcsb.WithTokenCredential(f.cfg.Credential))
		if err != nil {
			return nil, fmt.Errorf("failed to create kusto client for %s: %w", clusterURI, err)
		}
		return client, nil
	}

	switch f.cfg.AuthMode {
	case "", AuthModeNone:
		// Unauthenticated, matches what Kustainer expects.
	case AuthModeAzCli:
		kcsb = kcsb.WithAzCli()
	case AuthModeDefault:
		cred, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build default azure credential: %w", err)
		}
		kcsb = kcsb.WithTokenCredential(cred)
	case AuthModeApp:
		kcsb = kcsb.WithAadAppKey(f.cfg.ClientID, f.cfg.ClientSecret, f.cfg.TenantID)
	default:
		return nil, fmt.Errorf("unknown kusto auth mode %q", f.cfg.AuthMode)
	}

	client, err := kusto.New(kcsb)
	if err != nil {
		return nil, fmt.Errorf("failed to create kusto client for %s: %w", clusterURI, err)
	}
	return client, nil
}

// Close closes all cached ingestors and clients.
func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var firstErr error
	for key, ing := range f.ingestors {
		if err := ing.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(f.ingestors, key)
	}
	for uri, c := range f.clients {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(f.clients, uri)
	}
	return firstErr
}
