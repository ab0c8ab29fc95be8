package version

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"

	hosterrors "github.com/thoreinstein/mcphost/internal/errors"
	"github.com/thoreinstein/mcphost/internal/protocol"
)

// Result aggregates the outcome of validating one message against a
// version. Warnings are advisory; errors abort the send.
type Result struct {
	OK       bool
	Errors   []string
	Warnings []string
}

func (r *Result) addError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.OK = false
}

func (r *Result) addWarning(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Err converts a failed result into an error; a passing result returns
// nil.
func (r Result) Err() error {
	if r.OK {
		return nil
	}
	return errors.Wrapf(hosterrors.ErrValidation, "%s", strings.Join(r.Errors, "; "))
}

// lifecycleMethods are always permitted regardless of capabilities.
var lifecycleMethods = map[string]bool{
	protocol.MethodInitialize:  true,
	protocol.MethodInitialized: true,
	protocol.MethodShutdown:    true,
	"ping":                     true,
}

// categoryFeatures maps a method category (the prefix before the first
// slash) to the feature gating it.
var categoryFeatures = map[string]Feature{
	"tools":         FeatureTools,
	"resources":     FeatureResources,
	"prompts":       FeaturePrompts,
	"sampling":      FeatureSampling,
	"notifications": FeatureNotifications,
}

// ValidateMessage enforces JSON-RPC 2.0 shape and that the message's
// method category is enabled by the version's capabilities. Initialize
// messages additionally warn when they declare progress or cancellation
// capabilities the version does not support.
func (c *Catalog) ValidateMessage(msg *protocol.Envelope, versionID string) Result {
	res := Result{OK: true}

	d, err := c.Descriptor(versionID)
	if err != nil {
		res.addError("unknown version %s", versionID)
		return res
	}

	if msg.JSONRPC != protocol.Version {
		res.addError("jsonrpc must be %q, got %q", protocol.Version, msg.JSONRPC)
	}
	if msg.Method == "" && !msg.IsResponse() {
		res.addError("message has neither method nor result/error")
	}
	if msg.IsRequest() || msg.IsNotification() {
		c.validateMethod(&res, msg, d)
	}

	return res
}

func (c *Catalog) validateMethod(res *Result, msg *protocol.Envelope, d Descriptor) {
	if lifecycleMethods[msg.Method] {
		if msg.Method == protocol.MethodInitialize {
			c.validateInitialize(res, msg, d)
		}
		return
	}

	category := msg.Method
	if i := strings.Index(msg.Method, "/"); i >= 0 {
		category = msg.Method[:i]
	}

	feature, known := categoryFeatures[category]
	if !known {
		res.addWarning("unknown method category %q", category)
		return
	}
	if !d.HasFeature(feature) {
		res.addError("method %s requires capability %q, not enabled by version %s",
			msg.Method, feature, d.ID)
	}
}

func (c *Catalog) validateInitialize(res *Result, msg *protocol.Envelope, d Descriptor) {
	if len(msg.Params) == 0 {
		res.addError("initialize requires params")
		return
	}
	var params protocol.InitializeParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		res.addError("initialize params malformed: %v", err)
		return
	}
	for _, f := range []Feature{FeatureProgress, FeatureCancellation} {
		if params.Capabilities.Has(string(f)) && !d.HasFeature(f) {
			res.addWarning("initialize declares %q, unsupported by version %s", f, d.ID)
		}
	}
}
