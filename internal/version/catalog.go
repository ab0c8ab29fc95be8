package version

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/errors"

	hosterrors "github.com/thoreinstein/mcphost/internal/errors"
	"github.com/thoreinstein/mcphost/internal/protocol"
)

// Feature is a named protocol capability whose availability depends on
// the negotiated version.
type Feature string

// The full capability flag set.
const (
	FeatureTools         Feature = "tools"
	FeatureResources     Feature = "resources"
	FeaturePrompts       Feature = "prompts"
	FeatureSampling      Feature = "sampling"
	FeatureRoots         Feature = "roots"
	FeatureNotifications Feature = "notifications"
	FeatureProgress      Feature = "progress"
	FeatureCancellation  Feature = "cancellation"
)

// Descriptor describes one protocol version the host understands.
type Descriptor struct {
	// ID is the date-like version identifier, e.g. "2024-11-05".
	ID string

	// Features is the set of capabilities the version permits.
	Features map[Feature]bool

	// MessageFormats tags the wire format per message category, so
	// transformers know which shapes to expect.
	MessageFormats map[string]string

	// BackwardCompatible lists older version ids this version can
	// interoperate with.
	BackwardCompatible []string

	// Deprecated marks versions still negotiable but discouraged.
	Deprecated bool
}

// HasFeature reports whether the descriptor enables the feature.
func (d Descriptor) HasFeature(f Feature) bool {
	return d.Features[f]
}

// FeatureList returns the enabled features in canonical order.
func (d Descriptor) FeatureList() []Feature {
	all := []Feature{
		FeatureTools, FeatureResources, FeaturePrompts, FeatureSampling,
		FeatureRoots, FeatureNotifications, FeatureProgress, FeatureCancellation,
	}
	out := make([]Feature, 0, len(all))
	for _, f := range all {
		if d.Features[f] {
			out = append(out, f)
		}
	}
	return out
}

// Transformer rewrites a message between two adjacent version formats.
type Transformer func(*protocol.Envelope) (*protocol.Envelope, error)

// Catalog is the immutable source of truth for supported protocol
// versions, ordered newest to oldest, with a transformer table between
// adjacent entries.
type Catalog struct {
	ordered    []Descriptor
	index      map[string]int
	upgrades   map[string]Transformer // key: older id -> next newer
	downgrades map[string]Transformer // key: newer id -> next older
}

// Negotiation is the outcome of version negotiation with a peer.
type Negotiation struct {
	Version              string
	Capabilities         []Feature
	IsBackwardCompatible bool
	IsDeprecated         bool
	Details              string
}

// NewCatalog builds the default catalog of protocol versions the host
// understands, newest first.
func NewCatalog() *Catalog {
	ordered := []Descriptor{
		{
			ID: "2025-03-26",
			Features: featureSet(
				FeatureTools, FeatureResources, FeaturePrompts, FeatureSampling,
				FeatureRoots, FeatureNotifications, FeatureProgress, FeatureCancellation,
			),
			MessageFormats:     formats("v2"),
			BackwardCompatible: []string{"2024-11-05"},
		},
		{
			ID: "2024-11-05",
			Features: featureSet(
				FeatureTools, FeatureResources, FeaturePrompts, FeatureSampling,
				FeatureRoots, FeatureNotifications,
			),
			MessageFormats:     formats("v2"),
			BackwardCompatible: []string{"2024-10-07", "2024-09-24"},
		},
		{
			ID: "2024-10-07",
			Features: featureSet(
				FeatureTools, FeatureResources, FeaturePrompts, FeatureNotifications,
			),
			MessageFormats:     formats("v1"),
			BackwardCompatible: []string{"2024-09-24"},
		},
		{
			ID:             "2024-09-24",
			Features:       featureSet(FeatureTools, FeatureResources),
			MessageFormats: formats("v0"),
			Deprecated:     true,
		},
	}

	c := &Catalog{
		ordered:    ordered,
		index:      make(map[string]int, len(ordered)),
		upgrades:   make(map[string]Transformer),
		downgrades: make(map[string]Transformer),
	}
	for i, d := range ordered {
		c.index[d.ID] = i
	}

	// Adjacent transformer table. The only wire-visible break is at
	// 2024-09-24, whose tools/call carried arguments under "input".
	c.upgrades["2024-09-24"] = renameToolCallKey("input", "arguments")
	c.downgrades["2024-10-07"] = renameToolCallKey("arguments", "input")
	c.upgrades["2024-10-07"] = identityTransform
	c.downgrades["2024-11-05"] = identityTransform
	c.upgrades["2024-11-05"] = identityTransform
	c.downgrades["2025-03-26"] = identityTransform

	return c
}

func featureSet(features ...Feature) map[Feature]bool {
	set := make(map[Feature]bool, len(features))
	for _, f := range features {
		set[f] = true
	}
	return set
}

func formats(tag string) map[string]string {
	return map[string]string{
		"tools":         tag,
		"resources":     tag,
		"prompts":       tag,
		"notifications": tag,
	}
}

func identityTransform(e *protocol.Envelope) (*protocol.Envelope, error) {
	return e, nil
}

// renameToolCallKey rewrites the top-level params key of tools/call
// messages; other methods pass through untouched.
func renameToolCallKey(from, to string) Transformer {
	return func(e *protocol.Envelope) (*protocol.Envelope, error) {
		if e.Method != protocol.MethodToolsCall || len(e.Params) == 0 {
			return e, nil
		}
		var params map[string]json.RawMessage
		if err := json.Unmarshal(e.Params, &params); err != nil {
			return nil, errors.Wrap(err, "decoding tools/call params")
		}
		if v, ok := params[from]; ok {
			delete(params, from)
			params[to] = v
		}
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, errors.Wrap(err, "re-encoding tools/call params")
		}
		out := *e
		out.Params = raw
		return &out, nil
	}
}

// SupportedVersions returns the version ids ordered newest first.
func (c *Catalog) SupportedVersions() []string {
	out := make([]string, len(c.ordered))
	for i, d := range c.ordered {
		out[i] = d.ID
	}
	return out
}

// Descriptor returns the descriptor for the given version id.
func (c *Catalog) Descriptor(id string) (Descriptor, error) {
	i, ok := c.index[id]
	if !ok {
		return Descriptor{}, errors.Wrapf(hosterrors.ErrUnknownVersion, "%s", id)
	}
	return c.ordered[i], nil
}

// CapabilitiesOf returns the feature set enabled by the given version.
func (c *Catalog) CapabilitiesOf(id string) ([]Feature, error) {
	d, err := c.Descriptor(id)
	if err != nil {
		return nil, err
	}
	return d.FeatureList(), nil
}

// Negotiate selects a mutual version given the versions the peer
// claims. Preference order: exact mutual match starting from the host's
// newest; then backward-compatible matches in the same order.
func (c *Catalog) Negotiate(peerVersions []string) (Negotiation, error) {
	peer := make(map[string]bool, len(peerVersions))
	for _, v := range peerVersions {
		peer[v] = true
	}

	for _, d := range c.ordered {
		if peer[d.ID] {
			return Negotiation{
				Version:      d.ID,
				Capabilities: d.FeatureList(),
				IsDeprecated: d.Deprecated,
				Details:      fmt.Sprintf("exact match on %s", d.ID),
			}, nil
		}
	}

	for _, d := range c.ordered {
		for _, compat := range d.BackwardCompatible {
			if peer[compat] {
				return Negotiation{
					Version:              d.ID,
					Capabilities:         d.FeatureList(),
					IsBackwardCompatible: true,
					IsDeprecated:         d.Deprecated,
					Details:              fmt.Sprintf("%s accepted via backward compatibility with %s", d.ID, compat),
				}, nil
			}
		}
	}

	return Negotiation{}, errors.Wrapf(hosterrors.ErrNoCompatibleVersion,
		"peer offered %v, host supports %v", peerVersions, c.SupportedVersions())
}

// UpgradeMessage rewrites a message from one version's format to
// another's by composing the adjacent transformers along the ordered
// list. From and to may be in either direction.
func (c *Catalog) UpgradeMessage(msg *protocol.Envelope, from, to string) (*protocol.Envelope, error) {
	fi, ok := c.index[from]
	if !ok {
		return nil, errors.Wrapf(hosterrors.ErrUnknownVersion, "%s", from)
	}
	ti, ok := c.index[to]
	if !ok {
		return nil, errors.Wrapf(hosterrors.ErrUnknownVersion, "%s", to)
	}
	if fi == ti {
		return msg, nil
	}

	cur := msg
	// The ordered list is newest first, so moving toward index 0 is an
	// upgrade.
	for fi != ti {
		var step Transformer
		if fi > ti {
			step = c.upgrades[c.ordered[fi].ID]
			fi--
		} else {
			step = c.downgrades[c.ordered[fi].ID]
			fi++
		}
		if step == nil {
			return nil, errors.Newf("no transformer path from %s to %s", from, to)
		}
		next, err := step(cur)
		if err != nil {
			return nil, errors.Wrapf(err, "transforming %s toward %s", from, to)
		}
		cur = next
	}
	return cur, nil
}

// BuildInitializeParams builds initialize parameters whose declared
// capabilities are consistent with the version.
func (c *Catalog) BuildInitializeParams(id string, clientInfo protocol.Info) (protocol.InitializeParams, error) {
	d, err := c.Descriptor(id)
	if err != nil {
		return protocol.InitializeParams{}, err
	}

	caps := protocol.CapabilitySet{}
	declared := []Feature{
		FeatureTools, FeatureResources, FeaturePrompts, FeatureSampling,
		FeatureRoots, FeatureNotifications, FeatureProgress, FeatureCancellation,
	}
	for _, f := range declared {
		if d.Features[f] {
			caps[string(f)] = json.RawMessage("{}")
		}
	}

	return protocol.InitializeParams{
		ProtocolVersion: d.ID,
		Capabilities:    caps,
		ClientInfo:      clientInfo,
	}, nil
}
