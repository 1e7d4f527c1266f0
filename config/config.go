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

package config

import (
	"reflect"
	"strings"

	"github.com/spf13/viper"

	"github.com/openrelik/openrelik-worker-kustoingest/internal/adx"
	"github.com/openrelik/openrelik-worker-kustoingest/internal/taskqueue"
	"github.com/openrelik/openrelik-worker-kustoingest/internal/worker"
)

// Config aggregates configuration for the application.
// Each field is owned by its respective package.
type Config struct {
	Kafka  taskqueue.Config `mapstructure:"kafka"`
	Kusto  adx.Config       `mapstructure:"kusto"`
	Worker worker.Config    `mapstructure:"worker"`
}

// Load reads configuration from files and environment variables.
// Environment variables use the prefix "KUSTOINGEST" and the dot character
// in keys is replaced by an underscore. For example, "kusto.cluster_uri"
// becomes "KUSTOINGEST_KUSTO_CLUSTER_URI".
func Load() (*Config, error) {
	cfg := &Config{
		Kafka:  *taskqueue.DefaultConfig(),
		Kusto:  *adx.DefaultConfig(),
		Worker: *worker.DefaultConfig(),
	}

	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.SetEnvPrefix("KUSTOINGEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)
	_ = v.ReadInConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if b := v.GetString("kafka.brokers"); b != "" {
		cfg.Kafka.Brokers = strings.Split(b, ",")
	}
	return cfg, nil
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "-" {
			continue
		}
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(parts, tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}
