package reader

import (
	"errors"
	"testing"

	"github.com/kagami-ch/kagami/auth"
	"github.com/kagami-ch/kagami/common"
	"github.com/kagami-ch/kagami/config"
	"github.com/kagami-ch/kagami/test"
	"github.com/kagami-ch/kagami/util"
)

// In-memory Store implementation for deterministic tests without a live
// database
type memStore struct {
	threads []memThread

	// Injected storage failure
	err error

	// Number of Thread() calls made and the exclusion list of the last
	// AllThreads() call
	threadCalls int
	lastExclude []string
}

type memThread struct {
	meta    common.Thread
	op      common.Post
	replies []common.Post // in creation order
}

func (m *memStore) find(id uint64) *memThread {
	for i := range m.threads {
		if m.threads[i].meta.ID == id {
			return &m.threads[i]
		}
	}
	return nil
}

func (m *memStore) ThreadExists(id uint64, board string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	t := m.find(id)
	return t != nil && t.meta.Board == board, nil
}

// Counters and the reply window are derived in the same call, mirroring the
// single composed read of the SQL implementation
func (m *memStore) Thread(id uint64, lastN int) (
	*common.ThreadJoin, []common.Post, error,
) {
	m.threadCalls++
	if m.err != nil {
		return nil, nil, m.err
	}
	t := m.find(id)
	if t == nil {
		return nil, nil, nil
	}

	join := &common.ThreadJoin{
		Thread: t.meta,
		OP:     t.op,
	}
	join.PostCtr = uint32(len(t.replies))
	join.ImageCtr = 0
	for _, p := range t.replies {
		if p.Image != nil {
			join.ImageCtr++
		}
	}

	replies := t.replies
	if lastN != 0 {
		n := lastN - 1
		if n < len(replies) {
			replies = replies[len(replies)-n:]
		}
	}
	out := make([]common.Post, len(replies))
	copy(out, replies)
	return join, out, nil
}

func (m *memStore) Post(id uint64) (*common.StandalonePost, error) {
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.threads {
		t := &m.threads[i]
		for _, p := range append([]common.Post{t.op}, t.replies...) {
			if p.ID == id {
				return &common.StandalonePost{
					Post:  p,
					OP:    t.meta.ID,
					Board: t.meta.Board,
				}, nil
			}
		}
	}
	return nil, nil
}

func (m *memStore) ThreadsByBoard(board string) (
	joins []common.ThreadJoin, err error,
) {
	if m.err != nil {
		return nil, m.err
	}
	for _, t := range m.threads {
		if t.meta.Board == board {
			joins = append(joins, common.ThreadJoin{
				Thread: t.meta,
				OP:     t.op,
			})
		}
	}
	return
}

func (m *memStore) AllThreads(exclude ...string) (
	joins []common.ThreadJoin, err error,
) {
	m.lastExclude = exclude
	if m.err != nil {
		return nil, m.err
	}
outer:
	for _, t := range m.threads {
		for _, b := range exclude {
			if t.meta.Board == b {
				continue outer
			}
		}
		joins = append(joins, common.ThreadJoin{
			Thread: t.meta,
			OP:     t.op,
		})
	}
	return
}

func (m *memStore) BoardCounter(board string) (ctr uint64, err error) {
	if m.err != nil {
		return 0, m.err
	}
	for _, t := range m.threads {
		if t.meta.Board == board {
			ctr++
		}
	}
	return
}

func (m *memStore) PostCounter() (ctr uint64, err error) {
	if m.err != nil {
		return 0, m.err
	}
	for _, t := range m.threads {
		ctr += uint64(1 + len(t.replies))
	}
	return
}

func setupConfigs(t *testing.T) {
	t.Helper()
	config.Clear()
	config.Set(config.Configs{
		Salt:       "7b12c74c4b2e8f12",
		StaffBoard: "staff",
	})
	for _, id := range [...]string{"a", "c", "staff"} {
		config.SetBoardConfigs(config.BoardConfigs{
			ID: id,
		})
	}
}

var (
	anon      = auth.Ident{IP: "::1"}
	moderator = auth.Ident{
		IP:   "::1",
		Caps: []auth.Capability{auth.SeeModeration, auth.SeeMnemonics},
	}
)

func TestParsePost(t *testing.T) {
	setupConfigs(t)

	samplePost := func() common.Post {
		return common.Post{
			ID:   2,
			Body: "foo",
			IP:   "192.168.0.1",
			Moderation: []common.ModerationEntry{
				{Type: common.BanPost, By: "admin"},
			},
		}
	}

	t.Run("deleted post suppressed", func(t *testing.T) {
		rd := New(nil, "a", anon)
		p := samplePost()
		p.Deleted = true
		if res := rd.parsePost(p); res != nil {
			test.LogUnexpected(t, nil, res)
		}
	})

	t.Run("deleted post visible to moderation", func(t *testing.T) {
		rd := New(nil, "a", moderator)
		p := samplePost()
		p.Deleted = true
		res := rd.parsePost(p)
		if res == nil {
			t.Fatal("post suppressed for moderator")
		}
		if !res.Deleted {
			t.Fatal("deletion flag cleared")
		}
		if len(res.Moderation) != 1 {
			t.Fatal("moderation log stripped")
		}
	})

	t.Run("deleted image masked", func(t *testing.T) {
		rd := New(nil, "a", anon)
		p := samplePost()
		p.ImgDeleted = true
		p.Image = &common.Image{
			ImageCommon: common.ImageCommon{SHA1: "ca39a"},
		}
		res := rd.parsePost(p)
		if res == nil {
			t.Fatal("post suppressed")
		}
		if res.Image != nil || res.ImgDeleted {
			t.Fatal("image deletion not masked")
		}
	})

	t.Run("moderation log stripped", func(t *testing.T) {
		rd := New(nil, "a", anon)
		res := rd.parsePost(samplePost())
		if res == nil {
			t.Fatal("post suppressed")
		}
		if res.Moderation != nil {
			t.Fatal("moderation log not stripped")
		}
	})

	t.Run("no mnemonic without capability", func(t *testing.T) {
		rd := New(nil, "a", anon)
		res := rd.parsePost(samplePost())
		if res.Mnemonic != "" {
			t.Fatal("mnemonic attached without capability")
		}
	})

	t.Run("mnemonic deterministic", func(t *testing.T) {
		rd := New(nil, "a", moderator)
		first := rd.parsePost(samplePost())
		second := rd.parsePost(samplePost())
		if first.Mnemonic == "" {
			t.Fatal("mnemonic not attached")
		}
		if first.Mnemonic != second.Mnemonic {
			test.LogUnexpected(t, first.Mnemonic, second.Mnemonic)
		}
	})

	t.Run("malformed IP suppresses post", func(t *testing.T) {
		rd := New(nil, "a", moderator)
		p := samplePost()
		p.IP = "definitely not an IP"
		if res := rd.parsePost(p); res != nil {
			test.LogUnexpected(t, nil, res)
		}
	})

	t.Run("IP always cleared", func(t *testing.T) {
		for _, ident := range [...]auth.Ident{anon, moderator} {
			rd := New(nil, "a", ident)
			res := rd.parsePost(samplePost())
			if res == nil {
				t.Fatal("post suppressed")
			}
			if res.IP != "" {
				t.Fatal("IP leaked")
			}
		}
	})
}

// 1 OP + 10 replies on board "a"
func threadFixture() *memStore {
	replies := make([]common.Post, 10)
	for i := range replies {
		replies[i] = common.Post{
			ID:   uint64(i + 2),
			Time: int64(i + 2),
			Body: "reply",
			IP:   "10.0.0.2",
		}
	}
	return &memStore{
		threads: []memThread{
			{
				meta: common.Thread{
					ID:      1,
					Board:   "a",
					Subject: "test subject",
				},
				op: common.Post{
					ID:   1,
					Time: 1,
					Body: "OP",
					IP:   "10.0.0.1",
				},
				replies: replies,
			},
		},
	}
}

func TestGetThreadFull(t *testing.T) {
	setupConfigs(t)
	store := threadFixture()
	rd := New(store, "a", anon)

	thread, err := rd.GetThread(1, 0)
	if err != nil {
		test.UnexpectedError(t, err)
	}
	if thread == nil {
		t.Fatal("thread not returned")
	}
	if thread.Abbrev {
		t.Fatal("full view flagged as abbreviated")
	}
	if thread.OP.ID != 1 {
		test.LogUnexpected(t, uint64(1), thread.OP.ID)
	}
	if thread.Thread.PostCtr != 10 {
		test.LogUnexpected(t, uint32(10), thread.Thread.PostCtr)
	}
	if len(thread.Posts) != 10 {
		test.LogUnexpected(t, 10, len(thread.Posts))
	}
	if store.threadCalls != 1 {
		// Counters and the reply window must come from one composed read
		test.LogUnexpected(t, 1, store.threadCalls)
	}
}

func TestGetThreadLastN(t *testing.T) {
	setupConfigs(t)
	rd := New(threadFixture(), "a", anon)

	thread, err := rd.GetThread(1, 5)
	if err != nil {
		test.UnexpectedError(t, err)
	}
	if thread == nil {
		t.Fatal("thread not returned")
	}
	if !thread.Abbrev {
		t.Fatal("windowed view not flagged as abbreviated")
	}

	// The OP occupies one slot of the window; the 4 most recent replies
	// fill the rest
	if len(thread.Posts) != 4 {
		test.LogUnexpected(t, 4, len(thread.Posts))
	}
	for _, id := range [...]uint64{8, 9, 10, 11} {
		if _, ok := thread.Posts[util.IDToString(id)]; !ok {
			t.Errorf("post %d missing from window", id)
		}
	}
}

func TestThreadCounters(t *testing.T) {
	setupConfigs(t)
	store := threadFixture()

	// OP carries an image; 3 of 9 remaining replies carry images
	store.threads[0].op.Image = &common.Image{}
	store.threads[0].replies = store.threads[0].replies[:9]
	for i := 0; i < 3; i++ {
		store.threads[0].replies[i].Image = &common.Image{}
	}

	rd := New(store, "a", anon)
	thread, err := rd.GetThread(1, 0)
	if err != nil {
		test.UnexpectedError(t, err)
	}
	if thread.Thread.PostCtr != 9 {
		test.LogUnexpected(t, uint32(9), thread.Thread.PostCtr)
	}
	if thread.Thread.ImageCtr != 3 {
		test.LogUnexpected(t, uint32(3), thread.Thread.ImageCtr)
	}
}

func TestGetThreadDeletedReplies(t *testing.T) {
	setupConfigs(t)
	store := threadFixture()
	store.threads[0].replies[4].Deleted = true

	rd := New(store, "a", anon)
	thread, err := rd.GetThread(1, 0)
	if err != nil {
		test.UnexpectedError(t, err)
	}
	if len(thread.Posts) != 9 {
		test.LogUnexpected(t, 9, len(thread.Posts))
	}
	if _, ok := thread.Posts["6"]; ok {
		t.Fatal("deleted post served to anonymous viewer")
	}

	rd = New(store, "a", moderator)
	thread, err = rd.GetThread(1, 0)
	if err != nil {
		test.UnexpectedError(t, err)
	}
	if len(thread.Posts) != 10 {
		test.LogUnexpected(t, 10, len(thread.Posts))
	}
}

func TestThreadAccessCollapse(t *testing.T) {
	setupConfigs(t)
	store := threadFixture()
	store.threads[0].meta.Board = "staff"

	// Inaccessible and nonexistent threads are indistinguishable
	rd := New(store, "staff", anon)
	forbidden, err := rd.GetThread(1, 0)
	if err != nil {
		test.UnexpectedError(t, err)
	}
	missing, err := rd.GetThread(9000, 0)
	if err != nil {
		test.UnexpectedError(t, err)
	}
	test.AssertDeepEquals(t, forbidden, missing)
	if forbidden != nil {
		t.Fatal("forbidden thread served")
	}

	// Board mismatch is also a miss
	rd = New(store, "a", anon)
	wrongBoard, err := rd.GetThread(1, 0)
	if err != nil {
		test.UnexpectedError(t, err)
	}
	if wrongBoard != nil {
		t.Fatal("thread served across boards")
	}
}

func TestGetPost(t *testing.T) {
	setupConfigs(t)
	store := threadFixture()
	store.threads[0].replies[0].Deleted = true

	t.Run("missing", func(t *testing.T) {
		rd := New(store, "a", anon)
		post, err := rd.GetPost(9000)
		if err != nil {
			test.UnexpectedError(t, err)
		}
		if post != nil {
			t.Fatal("missing post served")
		}
	})

	t.Run("regular", func(t *testing.T) {
		rd := New(store, "a", anon)
		post, err := rd.GetPost(3)
		if err != nil {
			test.UnexpectedError(t, err)
		}
		if post == nil {
			t.Fatal("post not served")
		}
		if post.OP != 1 || post.Board != "a" {
			t.Fatal("parenthood not retained")
		}
		if post.IP != "" {
			t.Fatal("IP leaked")
		}
	})

	t.Run("deleted collapses to miss", func(t *testing.T) {
		rd := New(store, "a", anon)
		deleted, err := rd.GetPost(2)
		if err != nil {
			test.UnexpectedError(t, err)
		}
		missing, err := rd.GetPost(9000)
		if err != nil {
			test.UnexpectedError(t, err)
		}
		test.AssertDeepEquals(t, deleted, missing)
	})

	t.Run("deleted visible to moderation", func(t *testing.T) {
		rd := New(store, "a", moderator)
		post, err := rd.GetPost(2)
		if err != nil {
			test.UnexpectedError(t, err)
		}
		if post == nil {
			t.Fatal("post not served to moderator")
		}
	})

	t.Run("staff board", func(t *testing.T) {
		staffStore := threadFixture()
		staffStore.threads[0].meta.Board = "staff"

		rd := New(staffStore, "staff", anon)
		post, err := rd.GetPost(3)
		if err != nil {
			test.UnexpectedError(t, err)
		}
		if post != nil {
			t.Fatal("staff board post served to anonymous viewer")
		}

		rd = New(staffStore, "staff", moderator)
		post, err = rd.GetPost(3)
		if err != nil {
			test.UnexpectedError(t, err)
		}
		if post == nil {
			t.Fatal("staff board post not served to moderator")
		}
	})
}

func catalogFixture() *memStore {
	store := &memStore{}
	for i, f := range [...]struct {
		board   string
		deleted bool
	}{
		{"a", false},
		{"a", true},
		{"a", false},
		{"c", false},
		{"staff", false},
	} {
		id := uint64(i*100 + 1)
		store.threads = append(store.threads, memThread{
			meta: common.Thread{
				ID:      id,
				Board:   f.board,
				Deleted: f.deleted,
			},
			op: common.Post{
				ID: id,
				IP: "10.0.0.1",
			},
		})
	}
	return store
}

func TestGetBoard(t *testing.T) {
	setupConfigs(t)
	store := catalogFixture()

	rd := New(store, "a", anon)
	board, err := rd.GetBoard()
	if err != nil {
		test.UnexpectedError(t, err)
	}
	if board == nil {
		t.Fatal("board not served")
	}
	if board.Ctr != 3 {
		test.LogUnexpected(t, uint64(3), board.Ctr)
	}

	// Deleted thread dropped; survivor order preserved
	ids := make([]uint64, len(board.Threads))
	for i, thread := range board.Threads {
		ids[i] = thread.Thread.ID
		if thread.Posts != nil {
			t.Fatal("catalog view contains replies")
		}
		if thread.OP.IP != "" {
			t.Fatal("IP leaked")
		}
	}
	test.AssertDeepEquals(t, ids, []uint64{1, 201})

	// Moderation staff see the deleted thread as well
	rd = New(store, "a", moderator)
	board, err = rd.GetBoard()
	if err != nil {
		test.UnexpectedError(t, err)
	}
	if len(board.Threads) != 3 {
		test.LogUnexpected(t, 3, len(board.Threads))
	}
}

func TestGetBoardRestricted(t *testing.T) {
	setupConfigs(t)
	store := catalogFixture()

	rd := New(store, "staff", anon)
	board, err := rd.GetBoard()
	if err != nil {
		test.UnexpectedError(t, err)
	}
	if board != nil {
		t.Fatal("staff board served to anonymous viewer")
	}

	rd = New(store, "staff", moderator)
	board, err = rd.GetBoard()
	if err != nil {
		test.UnexpectedError(t, err)
	}
	if board == nil || len(board.Threads) != 1 {
		t.Fatal("staff board not served to moderator")
	}
}

func TestGetAllBoard(t *testing.T) {
	setupConfigs(t)
	store := catalogFixture()

	rd := New(store, "all", anon)
	board, err := rd.GetAllBoard()
	if err != nil {
		test.UnexpectedError(t, err)
	}

	// The staff board must be excluded at the query level, not fetched and
	// filtered
	test.AssertDeepEquals(t, store.lastExclude, []string{"staff"})
	for _, thread := range board.Threads {
		if thread.Thread.Board == "staff" {
			t.Fatal("staff board thread in /all/ view")
		}
	}

	rd = New(store, "all", moderator)
	board, err = rd.GetAllBoard()
	if err != nil {
		test.UnexpectedError(t, err)
	}
	if len(store.lastExclude) != 0 {
		t.Fatal("boards excluded for moderator")
	}
	var found bool
	for _, thread := range board.Threads {
		found = found || thread.Thread.Board == "staff"
	}
	if !found {
		t.Fatal("staff board thread missing from moderator /all/ view")
	}
}

func TestStorageErrorsNotCollapsed(t *testing.T) {
	setupConfigs(t)
	store := threadFixture()
	store.err = errors.New("connection reset")
	rd := New(store, "a", anon)

	if _, err := rd.GetThread(1, 0); err == nil {
		t.Fatal("storage failure masked in GetThread")
	}
	if _, err := rd.GetPost(2); err == nil {
		t.Fatal("storage failure masked in GetPost")
	}
	if _, err := rd.GetBoard(); err == nil {
		t.Fatal("storage failure masked in GetBoard")
	}
	if _, err := rd.GetAllBoard(); err == nil {
		t.Fatal("storage failure masked in GetAllBoard")
	}
}
