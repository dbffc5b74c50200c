// Package reader assembles access-controlled client views of threads, posts
// and board catalogs. All operations are stateless read transformations from
// (stored state, viewer identity) to a view.
//
// Not-found and forbidden deliberately converge to the same nil result, so a
// client can not probe for the existence of resources it may not see.
// Storage failures are returned as errors and never collapsed into that nil
// result.
package reader

import (
	"net"

	"github.com/bakape/mnemonics"
	"github.com/go-playground/log"
	"github.com/kagami-ch/kagami/auth"
	"github.com/kagami-ch/kagami/common"
	"github.com/kagami-ch/kagami/config"
	"github.com/kagami-ch/kagami/util"
)

// Store is the minimal storage query surface the reader composes views
// from. db.Store implements it against PostgreSQL.
type Store interface {
	// ThreadExists checks, if a thread exists on the specific board,
	// independent of access rights
	ThreadExists(id uint64, board string) (bool, error)

	// Thread fetches a thread's metadata joined with its OP and derived
	// counters together with its replies in creation order in one logical
	// read. A nonzero lastN bounds the replies to the trailing lastN-1.
	// Missing thread or OP returns nil halves without an error.
	Thread(id uint64, lastN int) (*common.ThreadJoin, []common.Post, error)

	// Post fetches a single post by ID together with its parenthood.
	// Returns nil, if missing.
	Post(id uint64) (*common.StandalonePost, error)

	// ThreadsByBoard fetches all thread-OP joins of a board in catalog
	// order
	ThreadsByBoard(board string) ([]common.ThreadJoin, error)

	// AllThreads fetches thread-OP joins across all boards in bump order,
	// excluding the passed boards at the query level
	AllThreads(exclude ...string) ([]common.ThreadJoin, error)

	// BoardCounter returns the progress counter of a board
	BoardCounter(board string) (uint64, error)

	// PostCounter returns the global post progress counter
	PostCounter() (uint64, error)
}

// Reader reads and formats thread, post and board structs for a single
// viewer on a single board
type Reader struct {
	board                             string
	ident                             auth.Ident
	store                             Store
	canSeeMnemonics, canSeeModeration bool
}

// New constructs a new Reader instance
func New(store Store, board string, ident auth.Ident) *Reader {
	return &Reader{
		board:            board,
		ident:            ident,
		store:            store,
		canSeeMnemonics:  auth.HasCapability(auth.SeeMnemonics, ident),
		canSeeModeration: auth.HasCapability(auth.SeeModeration, ident),
	}
}

// GetThread retrieves the client view of a thread. A nonzero lastN bounds
// the view to the lastN most recent posts, the OP always occupying one slot
// of the window. Returns nil, if the thread does not exist on the reader's
// board or the client may not access it.
func (rd *Reader) GetThread(id uint64, lastN int) (
	*common.ThreadContainer, error,
) {
	exists, err := rd.store.ThreadExists(id, rd.board)
	if err != nil {
		return nil, err
	}
	if !exists || !auth.CanAccessThread(id, rd.board, rd.ident) {
		return nil, nil
	}

	join, replies, err := rd.store.Thread(id, lastN)
	if err != nil {
		return nil, err
	}
	if join == nil {
		// Thread deleted between the existence check and the fetch.
		// Converges with a clean miss.
		return nil, nil
	}
	if join.Deleted && !rd.canSeeModeration {
		return nil, nil
	}

	op := rd.parsePost(join.OP)
	if op == nil {
		return nil, nil
	}

	// Parse replies, remove those that the client can not access and
	// allocate the rest to a map
	filtered := make(map[string]common.Post, len(replies))
	for _, post := range replies {
		if parsed := rd.parsePost(post); parsed != nil {
			filtered[util.IDToString(parsed.ID)] = *parsed
		}
	}

	return &common.ThreadContainer{
		Abbrev: lastN != 0,
		Thread: join.Thread,
		OP:     *op,
		Posts:  filtered,
	}, nil
}

// GetPost reads a single post. Returns nil, if the post does not exist or
// the client may not access it or its parent board.
func (rd *Reader) GetPost(id uint64) (*common.StandalonePost, error) {
	post, err := rd.store.Post(id)
	if err != nil {
		return nil, err
	}
	if post == nil || !auth.CanAccessBoard(post.Board, rd.ident) {
		return nil, nil
	}

	parsed := rd.parsePost(post.Post)
	if parsed == nil {
		return nil, nil
	}
	post.Post = *parsed
	return post, nil
}

// GetBoard retrieves all OPs of the reader's board. Returns nil, if the
// client may not access the board.
func (rd *Reader) GetBoard() (*common.Board, error) {
	if !auth.CanAccessBoard(rd.board, rd.ident) {
		return nil, nil
	}

	threads, err := rd.store.ThreadsByBoard(rd.board)
	if err != nil {
		return nil, err
	}
	ctr, err := rd.store.BoardCounter(rd.board)
	if err != nil {
		return nil, err
	}

	return &common.Board{
		Ctr:     ctr,
		Threads: rd.parseThreads(threads),
	}, nil
}

// GetAllBoard retrieves all threads the client has access to for the "/all/"
// metaboard. The staff board is excluded from the underlying query entirely,
// when inaccessible, instead of being fetched and then filtered.
func (rd *Reader) GetAllBoard() (*common.Board, error) {
	var exclude []string
	if staff := config.Get().StaffBoard; staff != "" {
		if !auth.CanAccessBoard(staff, rd.ident) {
			exclude = append(exclude, staff)
		}
	}

	threads, err := rd.store.AllThreads(exclude...)
	if err != nil {
		return nil, err
	}
	ctr, err := rd.store.PostCounter()
	if err != nil {
		return nil, err
	}

	return &common.Board{
		Ctr:     ctr,
		Threads: rd.parseThreads(threads),
	}, nil
}

// parseThreads formats board query results, discarding threads the client
// can not access. Relative order of the survivors is preserved. Catalog
// views never include replies.
func (rd *Reader) parseThreads(threads []common.ThreadJoin) (
	filtered []common.ThreadContainer,
) {
	filtered = make([]common.ThreadContainer, 0, len(threads))
	for _, thread := range threads {
		if thread.Deleted && !rd.canSeeModeration {
			continue
		}
		op := rd.parsePost(thread.OP)
		if op == nil {
			continue
		}
		filtered = append(filtered, common.ThreadContainer{
			Thread: thread.Thread,
			OP:     *op,
		})
	}
	return
}

// parsePost formats the Post struct according to the access level of the
// current client. Returns nil, if the post is not to be visible to the
// client at all.
func (rd *Reader) parsePost(post common.Post) *common.Post {
	if !rd.canSeeModeration {
		if post.Deleted {
			return nil
		}
		if post.ImgDeleted {
			post.Image = nil
			post.ImgDeleted = false
		}
		post.Moderation = nil
	}
	if rd.canSeeMnemonics {
		mnem, err := mnemonicFromIP(post.IP)
		if err != nil {
			// Suppress the post rather than risk serving it with the IP
			// still attached
			log.Errorf("dropping post %d from view: %s", post.ID, err)
			return nil
		}
		post.Mnemonic = mnem
	}
	post.IP = "" // Never pass IPs client-side
	return &post
}

// mnemonicFromIP derives the human-memorable poster fingerprint from a
// salted IP. Same IP always yields the same mnemonic.
func mnemonicFromIP(ip string) (string, error) {
	if net.ParseIP(ip) == nil {
		return "", common.ErrInvalidIP(ip)
	}

	salt := config.Get().Salt
	b := make([]byte, 0, len(salt)+len(ip))
	b = append(b, salt...)
	b = append(b, ip...)
	return mnemonic.FantasyName(b), nil
}
