package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Create workflow_instances table
			CREATE TABLE workflow_instances (
				content_uid VARCHAR(255) PRIMARY KEY,
				template_id VARCHAR(255) NOT NULL,
				current_state VARCHAR(255) NOT NULL,
				role_assignments JSONB NOT NULL DEFAULT '{}',
				history JSONB NOT NULL DEFAULT '[]',
				backup JSONB,
				applied_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				version BIGINT NOT NULL DEFAULT 1
			);

			CREATE INDEX idx_workflow_instances_template_id ON workflow_instances(template_id);
			CREATE INDEX idx_workflow_instances_current_state ON workflow_instances(current_state);
			CREATE INDEX idx_workflow_instances_updated_at ON workflow_instances(updated_at);

			-- Create audit_entries table
			CREATE TABLE audit_entries (
				id UUID PRIMARY KEY,
				recorded_at TIMESTAMP WITH TIME ZONE NOT NULL,
				operation VARCHAR(50) NOT NULL,
				user_id VARCHAR(255) NOT NULL,
				content_uid VARCHAR(255) NOT NULL,
				template_id VARCHAR(255),
				success BOOLEAN NOT NULL,
				changes JSONB,
				error TEXT
			);

			CREATE INDEX idx_audit_entries_content_uid ON audit_entries(content_uid);
			CREATE INDEX idx_audit_entries_user_id ON audit_entries(user_id);
			CREATE INDEX idx_audit_entries_recorded_at ON audit_entries(recorded_at);
		`,
	}
}
