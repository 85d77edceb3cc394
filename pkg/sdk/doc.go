// Package dealscout is an in-process client for rollup candidate retrieval.
//
// It embeds the same pipeline the dealscout API server runs: criteria
// validation, query normalization, vector search with metadata filters and
// an optional narrative summary. The vector index lives in Valkey, Redis,
// Milvus or process memory.
//
//	client, _ := dealscout.New(ctx,
//	    dealscout.WithValkey("localhost:6379", ""),
//	    dealscout.WithEmbedder(embedder),
//	)
//	defer client.Close()
//
//	_ = client.EnsureIndex(ctx)
//	_, _ = client.Upsert(ctx, deals)
//
//	industry := "dental"
//	out, _ := client.FindCandidates(ctx, dealscout.Criteria{Industry: &industry},
//	    dealscout.WithK(10), dealscout.WithSummary())
package dealscout
