// Command clear removes a dataset's indexed content: its vector-store
// points, its collection record, and its relational bookkeeping row.
package main

import (
	"context"
	"log"

	"github.com/spf13/pflag"

	"github.com/seanblong/reposearch/internal/config"
	"github.com/seanblong/reposearch/internal/relstore"
	"github.com/seanblong/reposearch/internal/scope"
	"github.com/seanblong/reposearch/internal/vectorstore"
)

func main() {
	fs := pflag.NewFlagSet("reposearch-clear", pflag.ExitOnError)
	project := fs.String("project", "", "project name owning the dataset")
	dataset := fs.String("dataset", "", "dataset name to clear")

	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if *project == "" || *dataset == "" {
		log.Fatal("--project and --dataset are required")
	}

	ctx := context.Background()

	rel, err := relstore.New(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect relational store: %v", err)
	}
	defer rel.Close()

	vec, err := vectorstore.New(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect vector store: %v", err)
	}
	defer vec.Close()

	projectID, ok, err := rel.ProjectIDByName(ctx, *project)
	if err != nil {
		log.Fatalf("failed to resolve project: %v", err)
	}
	if !ok {
		log.Fatalf("unknown project %q", *project)
	}

	datasetIDs, err := rel.DatasetIDsForProject(ctx, projectID)
	if err != nil {
		log.Fatalf("failed to list datasets: %v", err)
	}
	var datasetID int64
	var found bool
	names, err := rel.DatasetNamesByIDs(ctx, datasetIDs)
	if err != nil {
		log.Fatalf("failed to resolve dataset names: %v", err)
	}
	for id, name := range names {
		if name == *dataset {
			datasetID, found = id, true
			break
		}
	}
	if !found {
		log.Fatalf("dataset %q not found for project %q", *dataset, *project)
	}

	collectionName := scope.NameFor(scope.Project, *project, *dataset)

	deleted, err := vec.DeleteByDataset(ctx, collectionName, datasetID)
	if err != nil {
		log.Fatalf("failed to delete vector points: %v", err)
	}
	log.Printf("deleted %d vector points from collection %q", deleted, collectionName)

	if err := vec.DropCollection(ctx, collectionName); err != nil {
		log.Printf("warning: failed to drop empty collection %q: %v", collectionName, err)
	}

	if err := rel.DeleteDataset(ctx, datasetID); err != nil {
		log.Fatalf("failed to delete dataset record: %v", err)
	}

	log.Printf("cleared dataset %q for project %q", *dataset, *project)
}
