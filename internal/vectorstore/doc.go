// Package vectorstore implements the dense side of a document index.
//
// A dense index is built once per document identifier and persisted so a
// later run over the same document reuses the stored vectors instead of
// embedding the chunks again. Two backends are available: chromem-go,
// persisted under <path>/<docID>, and Qdrant, using the collection
// pdfqa_<docID>. Both return candidates ranked by maximal marginal
// relevance.
package vectorstore
