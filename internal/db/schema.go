package db

// SchemaSQL defines the tables behind the SurrealDB index and checkpoint stores.
const SchemaSQL = `
    -- ==========================================================================
    -- CHUNK TABLE (one row per indexed span, partitioned by collection)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS chunk SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS user_id ON chunk TYPE string;
    DEFINE FIELD IF NOT EXISTS collection_id ON chunk TYPE string;
    DEFINE FIELD IF NOT EXISTS build_id ON chunk TYPE string;
    DEFINE FIELD IF NOT EXISTS ordinal ON chunk TYPE int;
    DEFINE FIELD IF NOT EXISTS content ON chunk TYPE string;
    DEFINE FIELD IF NOT EXISTS source ON chunk TYPE string;
    DEFINE FIELD IF NOT EXISTS page ON chunk TYPE int;
    DEFINE FIELD IF NOT EXISTS embedding ON chunk TYPE array<float>;

    DEFINE INDEX IF NOT EXISTS chunk_collection ON chunk FIELDS user_id, collection_id;

    -- ==========================================================================
    -- COLLECTION_INDEX TABLE (manifest of the current build per collection)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS collection_index SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS user_id ON collection_index TYPE string;
    DEFINE FIELD IF NOT EXISTS collection_id ON collection_index TYPE string;
    DEFINE FIELD IF NOT EXISTS build_id ON collection_index TYPE string;
    DEFINE FIELD IF NOT EXISTS embed_model ON collection_index TYPE string;
    DEFINE FIELD IF NOT EXISTS dimension ON collection_index TYPE int;
    DEFINE FIELD IF NOT EXISTS chunk_count ON collection_index TYPE int;
    DEFINE FIELD IF NOT EXISTS built_at ON collection_index TYPE datetime DEFAULT time::now();

    -- ==========================================================================
    -- THREAD_CHECKPOINT TABLE
    -- ==========================================================================
    -- state holds the encoded conversation state; it is opaque to queries.
    DEFINE TABLE IF NOT EXISTS thread_checkpoint SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS user_id ON thread_checkpoint TYPE string;
    DEFINE FIELD IF NOT EXISTS collection_id ON thread_checkpoint TYPE string;
    DEFINE FIELD IF NOT EXISTS variant ON thread_checkpoint TYPE string;
    DEFINE FIELD IF NOT EXISTS step ON thread_checkpoint TYPE string;
    DEFINE FIELD IF NOT EXISTS state ON thread_checkpoint TYPE string;
    DEFINE FIELD IF NOT EXISTS version ON thread_checkpoint TYPE int;
    DEFINE FIELD IF NOT EXISTS updated ON thread_checkpoint TYPE datetime DEFAULT time::now();
`
