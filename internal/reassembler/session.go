package reassembler

import (
	"sort"
	"time"

	"github.com/rs/xid"

	"github.com/umn-impish/impisc/internal/cmdtable"
)

// NWrap is the maximum permissible distance between a fragment's seq_num
// and the first-received fragment's seq_num before that fragment is
// considered to belong to the post-wrap partition, per spec.md §4.7:
// 2^16 - 1 - 512.
const NWrap = 65023

// fragment is one received shell-reply fragment tagged with its arrival
// order. The sort does not read arrival; fragments that share a seq_num keep
// their arrival order because the sort is stable.
type fragment struct {
	payload cmdtable.ShellReplyFragmentPayload
	arrival int
}

// session accumulates the fragments of one burst, identified by an xid so
// operators can correlate a logged session with the reply it produces.
type session struct {
	id        xid.ID
	fragments []fragment
	opened    time.Time
	lastSeen  time.Time
	arrivals  int
}

func newSession(now time.Time) *session {
	return &session{
		id:       xid.New(),
		opened:   now,
		lastSeen: now,
	}
}

func (s *session) add(f cmdtable.ShellReplyFragmentPayload, now time.Time) {
	s.fragments = append(s.fragments, fragment{payload: f, arrival: s.arrivals})
	s.arrivals++
	s.lastSeen = now
}

func (s *session) idle(now time.Time, tDone time.Duration) bool {
	return now.Sub(s.lastSeen) >= tDone
}

// assemble orders fragments per spec.md §4.7: partition at the first wrap
// boundary relative to the first-received fragment's seq_num, stable-sort
// each partition independently, then concatenate pre-wrap then post-wrap.
func (s *session) assemble() []byte {
	if len(s.fragments) == 0 {
		return nil
	}

	base := s.fragments[0].payload.SeqNum
	var preWrap, postWrap []fragment
	for _, f := range s.fragments {
		if wrapDistance(base, f.payload.SeqNum) > NWrap {
			postWrap = append(postWrap, f)
		} else {
			preWrap = append(preWrap, f)
		}
	}

	sortBySeqNum(preWrap)
	sortBySeqNum(postWrap)

	out := make([]byte, 0, (len(preWrap)+len(postWrap))*cmdtable.FragmentPayloadSize)
	for _, f := range preWrap {
		out = append(out, f.payload.Payload[:]...)
	}
	for _, f := range postWrap {
		out = append(out, f.payload.Payload[:]...)
	}
	return out
}

func wrapDistance(base, seq uint16) int {
	d := int(seq) - int(base)
	if d < 0 {
		d = -d
	}
	return d
}

func sortBySeqNum(fs []fragment) {
	sort.SliceStable(fs, func(i, j int) bool {
		return fs[i].payload.SeqNum < fs[j].payload.SeqNum
	})
}
