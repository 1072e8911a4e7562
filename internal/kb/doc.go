// Package kb orchestrates the knowledge base: the Indexer keeps the chunk
// catalog in step with a remote document corpus, and the Retriever answers
// queries from it under a token budget.
package kb
