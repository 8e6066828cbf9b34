package config

import (
	"bytes"
	"encoding/json"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// codecs returns the file formats viper may read, keyed by extension.
func codecs() *viper.DefaultCodecRegistry {
	r := viper.NewCodecRegistry()
	_ = r.RegisterCodec("yaml", yamlCodec{})
	_ = r.RegisterCodec("yml", yamlCodec{})
	_ = r.RegisterCodec("toml", tomlCodec{})
	_ = r.RegisterCodec("json", jsonCodec{})
	return r
}

type yamlCodec struct{}

func (yamlCodec) Encode(v map[string]any) ([]byte, error) { return yaml.Marshal(v) }

func (yamlCodec) Decode(b []byte, v map[string]any) error { return yaml.Unmarshal(b, &v) }

type tomlCodec struct{}

func (tomlCodec) Encode(v map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (tomlCodec) Decode(b []byte, v map[string]any) error {
	_, err := toml.Decode(string(b), &v)
	return err
}

type jsonCodec struct{}

func (jsonCodec) Encode(v map[string]any) ([]byte, error) { return json.MarshalIndent(v, "", "  ") }

func (jsonCodec) Decode(b []byte, v map[string]any) error { return json.Unmarshal(b, &v) }
