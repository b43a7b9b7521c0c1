package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meikuraledutech/flow"
	"github.com/meikuraledutech/flow/nodes"
	"github.com/meikuraledutech/flow/postgres"
)

func main() {
	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	reg := nodes.Default()

	// Wire up the postgres implementation behind the Store interface.
	var store flow.Store = postgres.New(pool, reg)

	// 1. Create tables
	if err := store.CreateSchema(ctx); err != nil {
		log.Fatalf("schema: %v", err)
	}
	fmt.Println("schema created")

	// ── Build a flow from the template ────────────────────────────────
	ed := flow.NewEditor(reg)
	tmpl, err := flow.NewTemplate(reg, "Onboarding", nil)
	if err != nil {
		log.Fatalf("template: %v", err)
	}
	if err := ed.Load(tmpl); err != nil {
		log.Fatalf("load template: %v", err)
	}
	start, _ := tmpl.StartNode()

	ask, err := ed.AddNode(nodes.AskQuestion, flow.Position{X: 250, Y: 0})
	if err != nil {
		log.Fatalf("add node: %v", err)
	}
	role, err := ed.AddNode(nodes.TextButton, flow.Position{X: 500, Y: 0})
	if err != nil {
		log.Fatalf("add node: %v", err)
	}
	dev, _ := ed.AddNode(nodes.Goal, flow.Position{X: 750, Y: -100})
	design, _ := ed.AddNode(nodes.Goal, flow.Position{X: 750, Y: 100})

	// Node data is edited through the node's own change callback.
	n, _ := ed.Node(ask)
	if err := n.ReportChange(json.RawMessage(`{"questionText": "What's your email?", "validationType": "Email", "variableName": "email"}`)); err != nil {
		log.Fatalf("update node: %v", err)
	}
	n, _ = ed.Node(role)
	if err := n.ReportChange(json.RawMessage(`{"bodyText": "What is your role?", "buttons": [{"id": "dev", "text": "Developer"}, {"id": "design", "text": "Designer"}]}`)); err != nil {
		log.Fatalf("update node: %v", err)
	}

	for _, c := range []flow.Connection{
		{Source: start.ID, Target: ask},
		{Source: ask, Target: role},
		{Source: role, Target: dev, SourceHandle: "dev"},
		{Source: role, Target: design, SourceHandle: "design"},
	} {
		if _, err := ed.AddEdge(c); err != nil {
			log.Fatalf("add edge: %v", err)
		}
	}

	// ── Rejected connections ──────────────────────────────────────────
	_, err = ed.AddEdge(flow.Connection{Source: dev, Target: start.ID})
	var ce *flow.ConnectionError
	if errors.As(err, &ce) {
		fmt.Printf("rejected %s -> %s: %s\n", ce.Connection.Source, ce.Connection.Target, ce.Reason)
	}

	// ── Duplicate a node: structure kept, content cleared ─────────────
	copyID, err := ed.DuplicateNode(ask)
	if err != nil {
		log.Fatalf("duplicate: %v", err)
	}
	dup, _ := ed.Node(copyID)
	fmt.Println("\nduplicate:")
	printJSON(dup)
	ed.DeleteNode(copyID)

	// ── Save and list ─────────────────────────────────────────────────
	if err := store.SaveFlow(ctx, "onboarding", ed.Snapshot()); err != nil {
		log.Fatalf("save: %v", err)
	}
	list, err := store.ListFlows(ctx)
	if err != nil {
		log.Fatalf("list: %v", err)
	}
	fmt.Println("\nsaved flows:")
	printJSON(list)

	// ── Load into a fresh editor and export ───────────────────────────
	saved, err := store.GetFlow(ctx, "onboarding")
	if err != nil {
		log.Fatalf("get flow: %v", err)
	}
	other := flow.NewEditor(reg)
	if err := other.Load(*saved); err != nil {
		log.Fatalf("load: %v", err)
	}
	doc, err := other.Export()
	if err != nil {
		log.Fatalf("export: %v", err)
	}
	fmt.Println("\nexported document:")
	fmt.Println(string(doc))

	// ── Cleanup ───────────────────────────────────────────────────────
	if err := store.DeleteFlow(ctx, "onboarding"); err != nil {
		log.Fatalf("delete: %v", err)
	}
	fmt.Println("\nflow deleted")
}

func printJSON(v any) {
	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(out))
}
