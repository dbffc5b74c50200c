// Package db composes and executes all database queries of the read path
package db

import (
	"database/sql"

	"github.com/Masterminds/squirrel"
	"github.com/boltdb/bolt"
	_ "github.com/lib/pq" // Postgres driver
)

// DefaultConnArgs specifies the default PostgreSQL connection arguments
const DefaultConnArgs = "user=kagami password=kagami dbname=kagami sslmode=disable binary_parameters=yes"

// Schema bootstrap statements. Run on every start; no-ops on an already
// initialized database.
var schema = [...]string{
	`create table if not exists boards (
		readOnly bool not null default false,
		id text primary key,
		title varchar(100) not null default '',
		notice varchar(500) not null default '',
		rules text[] not null default '{}',
		created timestamp not null default now()
	)`,
	`create table if not exists images (
		fileType smallint not null,
		thumbType smallint not null,
		dims smallint[] not null,
		size bigint not null,
		MD5 char(22) not null,
		SHA1 char(40) primary key
	)`,
	`create table if not exists threads (
		sticky bool not null default false,
		locked bool not null default false,
		deleted bool not null default false,
		id bigint primary key,
		board text not null references boards on delete cascade,
		replyTime bigint not null default 0,
		bumpTime bigint not null default 0,
		subject varchar(100) not null default ''
	)`,
	`create index if not exists threads_board on threads (board)`,
	`create table if not exists posts (
		editing bool not null default false,
		moderated bool not null default false,
		deleted bool not null default false,
		imgDeleted bool not null default false,
		spoiler bool not null default false,
		id bigint primary key,
		op bigint not null references threads on delete cascade,
		time bigint not null default 0,
		body varchar(2000) not null default '',
		name varchar(50) not null default '',
		trip varchar(10) not null default '',
		ip text not null default '',
		imageName varchar(200) not null default '',
		SHA1 char(40) references images
	)`,
	`create index if not exists posts_op on posts (op)`,
	`create table if not exists post_moderation (
		id bigserial primary key,
		post_id bigint not null references posts on delete cascade,
		type smallint not null,
		length bigint not null default 0,
		by text not null,
		data text not null default ''
	)`,
	`create index if not exists post_moderation_post_id
		on post_moderation (post_id)`,
}

// Store is a handle on the PostgreSQL and embedded databases. It implements
// the query surface the reader package composes its views from.
type Store struct {
	db       *sql.DB
	boltDB   *bolt.DB
	sq       squirrel.StatementBuilderType
	connArgs string
}

// Open connects to PostgreSQL, bootstraps the schema, opens the embedded
// open post body database and begins listening for board configuration
// updates
func Open(connArgs, boltPath string) (s *Store, err error) {
	s = &Store{
		connArgs: connArgs,
	}

	s.db, err = sql.Open("postgres", connArgs)
	if err != nil {
		return
	}
	s.sq = squirrel.StatementBuilder.
		RunWith(squirrel.NewStmtCacheProxy(s.db)).
		PlaceholderFormat(squirrel.Dollar)

	err = s.InTransaction(false, func(tx *sql.Tx) error {
		return execAll(tx, schema[:]...)
	})
	if err != nil {
		return
	}

	s.boltDB, err = bolt.Open(boltPath, 0600, nil)
	if err != nil {
		return
	}
	err = s.boltDB.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte("open_bodies"))
		return err
	})
	if err != nil {
		return
	}

	err = s.loadBoardConfigs()
	return
}

// Close releases the database connections
func (s *Store) Close() error {
	if err := s.boltDB.Close(); err != nil {
		return err
	}
	return s.db.Close()
}
