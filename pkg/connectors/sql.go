// Copyright 2026 © The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package connectors

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/switchyard-io/switchyard/pkg/loader"
)

// SQL generates CRUD tools from a database schema. Each discovered table
// yields list/get tools, plus create/update/delete unless the connector is
// read-only. It implements loader.Adapter.
type SQL struct {
	db       *sql.DB
	driver   string
	tables   map[string]*Table
	prefix   string
	readOnly bool
}

// Table is one introspected database table.
type Table struct {
	Name       string
	Columns    []Column
	PrimaryKey []string
}

// Column is one column of a table.
type Column struct {
	Name       string
	Type       string
	Nullable   bool
	IsPrimary  bool
	HasDefault bool
}

// SQLOption configures the connector.
type SQLOption func(*SQL)

// WithToolPrefix prepends a prefix to generated tool names.
func WithToolPrefix(prefix string) SQLOption {
	return func(c *SQL) { c.prefix = prefix }
}

// WithReadOnly generates only list and get tools.
func WithReadOnly() SQLOption {
	return func(c *SQL) { c.readOnly = true }
}

// NewSQL introspects db's schema and builds the connector. The driver name
// selects the introspection dialect ("sqlite", "postgres", "mysql").
func NewSQL(db *sql.DB, driver string, opts ...SQLOption) (*SQL, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	c := &SQL{
		db:     db,
		driver: driver,
		tables: make(map[string]*Table),
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.introspect(context.Background()); err != nil {
		return nil, fmt.Errorf("introspection failed: %w", err)
	}
	return c, nil
}

// Tools implements loader.Adapter. Each tool's closure is bound to its table
// and operation at generation time.
func (c *SQL) Tools(_ context.Context) ([]loader.Tool, error) {
	var tools []loader.Tool
	for _, table := range c.tables {
		tools = append(tools, c.listTool(table), c.getTool(table))
		if !c.readOnly {
			tools = append(tools, c.createTool(table), c.updateTool(table), c.deleteTool(table))
		}
	}
	return tools, nil
}

// Tables returns the discovered schema.
func (c *SQL) Tables() map[string]*Table {
	return c.tables
}

// Close closes the underlying database connection.
func (c *SQL) Close() error {
	return c.db.Close()
}

func (c *SQL) introspect(ctx context.Context) error {
	switch c.driver {
	case "sqlite", "sqlite3":
		return c.introspectSQLite(ctx)
	case "postgres", "postgresql":
		return c.introspectInformationSchema(ctx, `
			SELECT table_name, column_name, data_type, is_nullable, column_default
			FROM information_schema.columns
			WHERE table_schema = 'public'
			ORDER BY table_name, ordinal_position`)
	case "mysql":
		return c.introspectInformationSchema(ctx, `
			SELECT table_name, column_name, data_type, is_nullable, column_default
			FROM information_schema.columns
			WHERE table_schema = DATABASE()
			ORDER BY table_name, ordinal_position`)
	default:
		return fmt.Errorf("unsupported driver %q", c.driver)
	}
}

func (c *SQL) introspectSQLite(ctx context.Context) error {
	rows, err := c.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'")
	if err != nil {
		return fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, name := range names {
		table := &Table{Name: name}
		pragma, err := c.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quote(name)))
		if err != nil {
			return fmt.Errorf("table_info %s: %w", name, err)
		}
		for pragma.Next() {
			var cid, notNull, pk int
			var colName, colType string
			var dflt sql.NullString
			if err := pragma.Scan(&cid, &colName, &colType, &notNull, &dflt, &pk); err != nil {
				pragma.Close()
				return err
			}
			table.Columns = append(table.Columns, Column{
				Name:       colName,
				Type:       colType,
				Nullable:   notNull == 0,
				IsPrimary:  pk > 0,
				HasDefault: dflt.Valid,
			})
			if pk > 0 {
				table.PrimaryKey = append(table.PrimaryKey, colName)
			}
		}
		pragma.Close()
		c.tables[name] = table
	}
	return nil
}

func (c *SQL) introspectInformationSchema(ctx context.Context, query string) error {
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tableName, columnName, dataType, isNullable string
		var dflt sql.NullString
		if err := rows.Scan(&tableName, &columnName, &dataType, &isNullable, &dflt); err != nil {
			return err
		}
		table, ok := c.tables[tableName]
		if !ok {
			table = &Table{Name: tableName}
			c.tables[tableName] = table
		}
		table.Columns = append(table.Columns, Column{
			Name:       columnName,
			Type:       dataType,
			Nullable:   strings.EqualFold(isNullable, "YES"),
			HasDefault: dflt.Valid,
		})
	}
	return rows.Err()
}

func (c *SQL) toolName(op, table string) string {
	name := op + "_" + table
	if c.prefix != "" {
		name = c.prefix + "_" + name
	}
	return name
}

func (c *SQL) listTool(table *Table) loader.Tool {
	filterProps := make(map[string]any, len(table.Columns))
	for _, col := range table.Columns {
		filterProps[col.Name] = columnSchema(col)
	}

	t := table
	return loader.Tool{
		Name:        c.toolName("list", table.Name),
		Description: fmt.Sprintf("List records from %s with optional filters", table.Name),
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"filters": map[string]any{
					"type":        "object",
					"description": "Filter conditions (column: value)",
					"properties":  filterProps,
				},
				"limit":      map[string]any{"type": "integer", "default": 100},
				"offset":     map[string]any{"type": "integer", "default": 0},
				"order_by":   map[string]any{"type": "string"},
				"order_desc": map[string]any{"type": "boolean", "default": false},
			},
		},
		Invoke: func(ctx context.Context, args map[string]any) (any, error) {
			return c.execList(ctx, t, args)
		},
	}
}

func (c *SQL) getTool(table *Table) loader.Tool {
	props, required := primaryKeySchema(table)

	t := table
	return loader.Tool{
		Name:        c.toolName("get", table.Name),
		Description: fmt.Sprintf("Get a single record from %s by primary key", table.Name),
		InputSchema: map[string]any{
			"type":       "object",
			"properties": props,
			"required":   required,
		},
		Invoke: func(ctx context.Context, args map[string]any) (any, error) {
			return c.execGet(ctx, t, args)
		},
	}
}

func (c *SQL) createTool(table *Table) loader.Tool {
	props := make(map[string]any)
	var required []string
	for _, col := range table.Columns {
		// Auto-generated keys are supplied by the database.
		if col.IsPrimary && col.HasDefault {
			continue
		}
		props[col.Name] = columnSchema(col)
		if !col.Nullable && !col.HasDefault && !col.IsPrimary {
			required = append(required, col.Name)
		}
	}

	schema := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		schema["required"] = required
	}

	t := table
	return loader.Tool{
		Name:        c.toolName("create", table.Name),
		Description: fmt.Sprintf("Create a new record in %s", table.Name),
		InputSchema: schema,
		Invoke: func(ctx context.Context, args map[string]any) (any, error) {
			return c.execCreate(ctx, t, args)
		},
	}
}

func (c *SQL) updateTool(table *Table) loader.Tool {
	props := make(map[string]any)
	var required []string
	for _, pk := range table.PrimaryKey {
		if col, ok := findColumn(table, pk); ok {
			props[pk] = columnSchema(col)
			required = append(required, pk)
		}
	}
	for _, col := range table.Columns {
		if !col.IsPrimary {
			props[col.Name] = columnSchema(col)
		}
	}

	schema := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		schema["required"] = required
	}

	t := table
	return loader.Tool{
		Name:        c.toolName("update", table.Name),
		Description: fmt.Sprintf("Update a record in %s by primary key", table.Name),
		InputSchema: schema,
		Invoke: func(ctx context.Context, args map[string]any) (any, error) {
			return c.execUpdate(ctx, t, args)
		},
	}
}

func (c *SQL) deleteTool(table *Table) loader.Tool {
	props, required := primaryKeySchema(table)

	t := table
	return loader.Tool{
		Name:        c.toolName("delete", table.Name),
		Description: fmt.Sprintf("Delete a record from %s by primary key", table.Name),
		InputSchema: map[string]any{
			"type":       "object",
			"properties": props,
			"required":   required,
		},
		Invoke: func(ctx context.Context, args map[string]any) (any, error) {
			return c.execDelete(ctx, t, args)
		},
	}
}

func primaryKeySchema(table *Table) (map[string]any, []string) {
	props := make(map[string]any)
	var required []string
	for _, pk := range table.PrimaryKey {
		if col, ok := findColumn(table, pk); ok {
			props[pk] = columnSchema(col)
			required = append(required, pk)
		}
	}
	if len(required) == 0 {
		props["id"] = map[string]any{"type": "string", "description": "Record ID"}
		required = append(required, "id")
	}
	return props, required
}

func findColumn(table *Table, name string) (Column, bool) {
	for _, col := range table.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return Column{}, false
}

// columnSchema maps a SQL column type onto a JSON Schema fragment.
func columnSchema(col Column) map[string]any {
	sqlType := strings.ToUpper(col.Type)
	schema := make(map[string]any)
	switch {
	case strings.Contains(sqlType, "INT"):
		schema["type"] = "integer"
	case strings.Contains(sqlType, "FLOAT"), strings.Contains(sqlType, "DOUBLE"),
		strings.Contains(sqlType, "DECIMAL"), strings.Contains(sqlType, "NUMERIC"),
		strings.Contains(sqlType, "REAL"):
		schema["type"] = "number"
	case strings.Contains(sqlType, "BOOL"):
		schema["type"] = "boolean"
	case strings.Contains(sqlType, "DATE"), strings.Contains(sqlType, "TIME"):
		schema["type"] = "string"
		schema["format"] = "date-time"
	case strings.Contains(sqlType, "JSON"):
		schema["type"] = "object"
	default:
		schema["type"] = "string"
	}
	return schema
}

func (c *SQL) execList(ctx context.Context, table *Table, args map[string]any) (any, error) {
	query := "SELECT * FROM " + quote(table.Name)
	var queryArgs []any

	if filters, ok := args["filters"].(map[string]any); ok && len(filters) > 0 {
		var conditions []string
		for col, val := range filters {
			if _, known := findColumn(table, col); !known {
				return nil, fmt.Errorf("unknown filter column %q", col)
			}
			conditions = append(conditions, quote(col)+" = ?")
			queryArgs = append(queryArgs, val)
		}
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	if orderBy, ok := args["order_by"].(string); ok && orderBy != "" {
		if _, known := findColumn(table, orderBy); !known {
			return nil, fmt.Errorf("unknown order_by column %q", orderBy)
		}
		query += " ORDER BY " + quote(orderBy)
		if desc, ok := args["order_desc"].(bool); ok && desc {
			query += " DESC"
		}
	}

	limit := 100
	if l, ok := asInt(args["limit"]); ok {
		limit = l
	}
	query += fmt.Sprintf(" LIMIT %d", limit)
	if offset, ok := asInt(args["offset"]); ok && offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", offset)
	}

	rows, err := c.db.QueryContext(ctx, query, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()
	return rowsToMaps(rows)
}

func (c *SQL) execGet(ctx context.Context, table *Table, args map[string]any) (any, error) {
	conditions, values, err := primaryKeyWhere(table, args)
	if err != nil {
		return nil, err
	}
	query := "SELECT * FROM " + quote(table.Name) + " WHERE " +
		strings.Join(conditions, " AND ") + " LIMIT 1"

	rows, err := c.db.QueryContext(ctx, query, values...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	results, err := rowsToMaps(rows)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("record not found")
	}
	return results[0], nil
}

func (c *SQL) execCreate(ctx context.Context, table *Table, args map[string]any) (any, error) {
	var columns, placeholders []string
	var values []any
	for col, val := range args {
		if _, known := findColumn(table, col); !known {
			return nil, fmt.Errorf("unknown column %q", col)
		}
		columns = append(columns, quote(col))
		placeholders = append(placeholders, "?")
		values = append(values, val)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("no fields to insert")
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quote(table.Name), strings.Join(columns, ", "), strings.Join(placeholders, ", "))
	result, err := c.db.ExecContext(ctx, query, values...)
	if err != nil {
		return nil, fmt.Errorf("insert failed: %w", err)
	}

	lastID, _ := result.LastInsertId()
	affected, _ := result.RowsAffected()
	return map[string]any{"last_insert_id": lastID, "rows_affected": affected}, nil
}

func (c *SQL) execUpdate(ctx context.Context, table *Table, args map[string]any) (any, error) {
	pkSet := make(map[string]bool, len(table.PrimaryKey))
	for _, pk := range table.PrimaryKey {
		pkSet[pk] = true
	}

	var setClauses, whereClauses []string
	var setValues, whereValues []any
	for col, val := range args {
		if _, known := findColumn(table, col); !known {
			return nil, fmt.Errorf("unknown column %q", col)
		}
		if pkSet[col] {
			whereClauses = append(whereClauses, quote(col)+" = ?")
			whereValues = append(whereValues, val)
		} else {
			setClauses = append(setClauses, quote(col)+" = ?")
			setValues = append(setValues, val)
		}
	}
	if len(whereClauses) == 0 {
		return nil, fmt.Errorf("missing primary key for update")
	}
	if len(setClauses) == 0 {
		return nil, fmt.Errorf("no fields to update")
	}

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		quote(table.Name), strings.Join(setClauses, ", "), strings.Join(whereClauses, " AND "))
	result, err := c.db.ExecContext(ctx, query, append(setValues, whereValues...)...)
	if err != nil {
		return nil, fmt.Errorf("update failed: %w", err)
	}

	affected, _ := result.RowsAffected()
	return map[string]any{"rows_affected": affected}, nil
}

func (c *SQL) execDelete(ctx context.Context, table *Table, args map[string]any) (any, error) {
	conditions, values, err := primaryKeyWhere(table, args)
	if err != nil {
		return nil, err
	}
	query := "DELETE FROM " + quote(table.Name) + " WHERE " + strings.Join(conditions, " AND ")
	result, err := c.db.ExecContext(ctx, query, values...)
	if err != nil {
		return nil, fmt.Errorf("delete failed: %w", err)
	}

	affected, _ := result.RowsAffected()
	return map[string]any{"rows_affected": affected}, nil
}

func primaryKeyWhere(table *Table, args map[string]any) ([]string, []any, error) {
	pkCols := table.PrimaryKey
	if len(pkCols) == 0 {
		pkCols = []string{"id"}
	}
	var conditions []string
	var values []any
	for _, pk := range pkCols {
		val, ok := args[pk]
		if !ok {
			return nil, nil, fmt.Errorf("missing primary key: %s", pk)
		}
		conditions = append(conditions, quote(pk)+" = ?")
		values = append(values, val)
	}
	return conditions, values, nil
}

func rowsToMaps(rows *sql.Rows) ([]map[string]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

// asInt accepts the numeric shapes JSON decoding produces.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func quote(name string) string {
	return `"` + name + `"`
}
