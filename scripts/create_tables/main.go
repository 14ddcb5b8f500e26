package main

import (
	"log"

	"github.com/gocql/gocql"
)

// Creates the portal keyspace and the messaging tables. Schema migrations
// proper belong in a migration tool; this covers development clusters.
func main() {
	sys := gocql.NewCluster("localhost")
	sys.Keyspace = "system"
	sys.Consistency = gocql.Quorum
	sysSession, err := sys.CreateSession()
	if err != nil {
		log.Fatal(err)
	}
	if err := sysSession.Query(`CREATE KEYSPACE IF NOT EXISTS portal
		WITH REPLICATION = { 'class' : 'SimpleStrategy', 'replication_factor' : 1 }`).Exec(); err != nil {
		log.Fatal(err)
	}
	sysSession.Close()

	cluster := gocql.NewCluster("localhost")
	cluster.Keyspace = "portal"
	cluster.Consistency = gocql.Quorum
	session, err := cluster.CreateSession()
	if err != nil {
		log.Fatal(err)
	}
	defer session.Close()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS messages (
			conversation_key text,
			id bigint,
			project_id text,
			sender_id text,
			sender_name text,
			sender_role text,
			receiver_id text,
			receiver_name text,
			receiver_role text,
			body text,
			kind text,
			priority text,
			metadata text,
			read boolean,
			read_at timestamp,
			created_at timestamp,
			PRIMARY KEY (conversation_key, id)
		) WITH CLUSTERING ORDER BY (id ASC)`,
		`CREATE TABLE IF NOT EXISTS user_conversations (
			user_id text,
			conversation_key text,
			project_id text,
			project_name text,
			project_status text,
			other_id text,
			other_name text,
			other_role text,
			last_body text,
			last_sender_id text,
			last_at timestamp,
			PRIMARY KEY (user_id, conversation_key)
		)`,
		`CREATE TABLE IF NOT EXISTS conversation_counters (
			user_id text,
			conversation_key text,
			unread_count counter,
			PRIMARY KEY (user_id, conversation_key)
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id text PRIMARY KEY,
			name text,
			role text
		)`,
		`CREATE TABLE IF NOT EXISTS projects (
			id text PRIMARY KEY,
			name text,
			status text
		)`,
	}
	for _, stmt := range stmts {
		if err := session.Query(stmt).Exec(); err != nil {
			log.Fatal(err)
		}
	}

	log.Println("Portal tables created successfully")
}
