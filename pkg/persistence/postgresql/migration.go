package postgresql

// migrations returns the schema migrations keyed by version. Flows are
// stored as their canonical JSON document (the same shape used for export,
// templates, and sync payloads); conversations and messages are relational.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS flows (
				id          VARCHAR(36) PRIMARY KEY,
				tenant_id   VARCHAR(255) NOT NULL,
				flow_type   VARCHAR(64)  NOT NULL DEFAULT 'booking',
				is_active   BOOLEAN      NOT NULL DEFAULT FALSE,
				is_template BOOLEAN      NOT NULL DEFAULT FALSE,
				document    JSONB        NOT NULL,
				created_at  TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at  TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_flows_tenant ON flows (tenant_id);
			CREATE UNIQUE INDEX IF NOT EXISTS idx_flows_tenant_active
				ON flows (tenant_id) WHERE is_active;

			CREATE TABLE IF NOT EXISTS conversations (
				id               VARCHAR(36) PRIMARY KEY,
				tenant_id        VARCHAR(255) NOT NULL,
				phone_number     VARCHAR(64)  NOT NULL,
				customer_name    VARCHAR(255),
				current_state    VARCHAR(64)  NOT NULL,
				selected_service VARCHAR(255),
				selected_date    VARCHAR(64),
				selected_time    VARCHAR(64),
				context_data     JSONB,
				created_at       TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at       TIMESTAMP WITH TIME ZONE NOT NULL,
				UNIQUE (tenant_id, phone_number)
			);

			CREATE TABLE IF NOT EXISTS messages (
				id              VARCHAR(36) PRIMARY KEY,
				conversation_id VARCHAR(36)  NOT NULL REFERENCES conversations(id),
				content         TEXT         NOT NULL,
				message_type    VARCHAR(32)  NOT NULL,
				is_from_bot     BOOLEAN      NOT NULL,
				created_at      TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_messages_conversation
				ON messages (conversation_id, created_at);
		`,
	}
}
