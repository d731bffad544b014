package node

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	"github.com/google/uuid"
)

// fakeStore is an in-memory Store used by this package's tests. It
// mimics the real store's transaction and overlap semantics closely
// enough to exercise C3-C7 without a database.
type fakeStore struct {
	nodes   map[uuid.UUID]*Node
	logs    map[uuid.UUID][]*NodeLogEntry
	counter int
	nextLog int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		nodes: map[uuid.UUID]*Node{},
		logs:  map[uuid.UUID][]*NodeLogEntry{},
	}
}

func (s *fakeStore) Overlap(ctx context.Context, hwMatch []string) ([]*Node, error) {
	want := map[string]bool{}
	for _, e := range hwMatch {
		want[e] = true
	}
	var out []*Node
	for _, n := range s.nodes {
		for _, e := range n.HwInfo {
			if want[e] {
				out = append(out, n)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *fakeStore) Create(ctx context.Context, hwInfo []string, dhcpMAC string) (*Node, error) {
	s.counter++
	n := &Node{
		ID:      uuid.New(),
		Name:    fmt.Sprintf("node-%d", s.counter),
		HwInfo:  hwInfo,
		DHCPMAC: dhcpMAC,
	}
	s.nodes[n.ID] = n
	return n, nil
}

func (s *fakeStore) Get(ctx context.Context, id uuid.UUID) (*Node, error) {
	n, ok := s.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node %s not found", id)
	}
	return n, nil
}

func (s *fakeStore) Save(ctx context.Context, n *Node) error {
	s.nodes[n.ID] = n
	return nil
}

func (s *fakeStore) Destroy(ctx context.Context, n *Node) error {
	delete(s.nodes, n.ID)
	return nil
}

func (s *fakeStore) MoveLog(ctx context.Context, from, to uuid.UUID) error {
	for _, e := range s.logs[from] {
		e.NodeID = to
		s.logs[to] = append(s.logs[to], e)
	}
	delete(s.logs, from)
	return nil
}

func (s *fakeStore) AppendLog(ctx context.Context, entry *NodeLogEntry) error {
	s.nextLog++
	entry.ID = s.nextLog
	if entry.Timestamp.IsZero() {
		entry.Timestamp = nowFunc()
	}
	s.logs[entry.NodeID] = append(s.logs[entry.NodeID], entry)
	return nil
}

func (s *fakeStore) Log(ctx context.Context, nodeID uuid.UUID) ([]*NodeLogEntry, error) {
	entries := append([]*NodeLogEntry{}, s.logs[nodeID]...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Timestamp.Before(entries[j].Timestamp) })
	return entries, nil
}

func (s *fakeStore) Search(ctx context.Context, hostnamePattern string, hwInfo map[string]string) ([]*Node, error) {
	var re *regexp.Regexp
	if hostnamePattern != "" {
		re = regexp.MustCompile("(?i)" + hostnamePattern)
	}
	var out []*Node
	for _, n := range s.nodes {
		if re != nil && !re.MatchString(n.Hostname) {
			continue
		}
		matched := true
		for k, v := range hwInfo {
			want := k + "=" + v
			found := false
			for _, e := range n.HwInfo {
				if e == want {
					found = true
					break
				}
			}
			if !found {
				matched = false
				break
			}
		}
		if matched {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// fakeQueue records every publish for assertion in tests.
type fakeQueue struct {
	published []fakeMessage
}

type fakeMessage struct {
	Recipient string
	Message   map[string]any
}

func (q *fakeQueue) Publish(ctx context.Context, recipient string, message map[string]any) error {
	q.published = append(q.published, fakeMessage{Recipient: recipient, Message: message})
	return nil
}

// fakeTagMatcher returns a fixed tag set or error.
type fakeTagMatcher struct {
	tags []Tag
	err  error
}

func (m *fakeTagMatcher) Match(ctx context.Context, n *Node) ([]Tag, error) {
	return m.tags, m.err
}

// fakeCatalogue returns a fixed policy.
type fakeCatalogue struct {
	policy *Policy
	err    error
}

func (c *fakeCatalogue) Bind(ctx context.Context, n *Node) (*Policy, error) {
	return c.policy, c.err
}

// fakeManagement simulates the IPMI-style management channel.
type fakeManagement struct {
	on     bool
	onErr  error
	powErr error
	resErr error
	calls  []string
}

func (m *fakeManagement) On(ctx context.Context, n *Node) (bool, error) {
	m.calls = append(m.calls, "on?")
	return m.on, m.onErr
}

func (m *fakeManagement) Power(ctx context.Context, n *Node, on bool) error {
	m.calls = append(m.calls, fmt.Sprintf("power(%v)", on))
	return m.powErr
}

func (m *fakeManagement) Reset(ctx context.Context, n *Node) error {
	m.calls = append(m.calls, "reset")
	return m.resErr
}
