package observerproto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"chambersim.ai/schemas"
)

const subscribeSchemaURL = "https://chambersim.ai/schemas/subscribe.schema.json"

var (
	subscribeOnce   sync.Once
	subscribeSchema *jsonschema.Schema
	subscribeErr    error
)

func compileSubscribe() (*jsonschema.Schema, error) {
	subscribeOnce.Do(func() {
		raw, err := schemas.FS.ReadFile("subscribe.schema.json")
		if err != nil {
			subscribeErr = err
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(subscribeSchemaURL, bytes.NewReader(raw)); err != nil {
			subscribeErr = err
			return
		}
		subscribeSchema, subscribeErr = c.Compile(subscribeSchemaURL)
	})
	return subscribeSchema, subscribeErr
}

// DecodeSubscribe validates raw against the SUBSCRIBE schema and decodes it.
// Schema violations are returned as errors suitable for an ERROR message.
func DecodeSubscribe(raw []byte) (SubscribeMsg, error) {
	var sub SubscribeMsg
	s, err := compileSubscribe()
	if err != nil {
		return sub, fmt.Errorf("subscribe schema: %w", err)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return sub, fmt.Errorf("bad json: %w", err)
	}
	if err := s.Validate(doc); err != nil {
		return sub, err
	}
	if err := json.Unmarshal(raw, &sub); err != nil {
		return sub, err
	}
	if sub.Encoding == "" {
		sub.Encoding = EncodingText
	}
	return sub, nil
}
