package auditry

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/jinzhu/inflection"

	"github.com/mickamy/auditry/internal/ident"
)

// DefaultHousekeepingColumn is the last-modified column excluded from change tracking.
const DefaultHousekeepingColumn = "UPDATED_AT"

// TableNamer provides a custom table name for a model.
type TableNamer interface {
	TableName() string
}

// TypeNamer provides a custom object type for a model, overriding the Go type path.
type TypeNamer interface {
	ObjectTypeName() string
}

// Column describes one persisted field of an entity.
type Column struct {
	Name       string // storage column name, e.g. "updated_at"
	Field      string // in-memory field name, e.g. "updatedAt"
	PrimaryKey bool

	index []int
}

// IsHousekeeping reports whether the column matches the housekeeping name, ignoring case.
func (c Column) IsHousekeeping(name string) bool {
	return strings.EqualFold(c.Name, name)
}

// Value reads the column's current value from entity.
func (c Column) Value(entity any) any {
	rv, ok := indirect(reflect.ValueOf(entity))
	if !ok {
		return nil
	}
	return rv.FieldByIndex(c.index).Interface()
}

// Schema is the static column layout of one entity type.
type Schema struct {
	Type       reflect.Type
	ObjectType string
	Table      string
	Columns    []Column
}

// Column looks up a column by storage name.
func (s *Schema) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// PrimaryKey reads the key of entity: the single key value, or []any for composite keys.
func (s *Schema) PrimaryKey(entity any) any {
	var key []any
	for _, c := range s.Columns {
		if c.PrimaryKey {
			key = append(key, c.Value(entity))
		}
	}
	switch len(key) {
	case 0:
		return nil
	case 1:
		return key[0]
	default:
		return key
	}
}

// generatedKey returns the settable field holding entity's single integer primary key
// while it is still zero, i.e. when the database is expected to assign it.
func (s *Schema) generatedKey(entity any) (reflect.Value, bool) {
	var pk []Column
	for _, c := range s.Columns {
		if c.PrimaryKey {
			pk = append(pk, c)
		}
	}
	if len(pk) != 1 {
		return reflect.Value{}, false
	}
	rv, ok := indirect(reflect.ValueOf(entity))
	if !ok {
		return reflect.Value{}, false
	}
	f := rv.FieldByIndex(pk[0].index)
	if !f.CanSet() || !f.IsZero() {
		return reflect.Value{}, false
	}
	switch f.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return f, true
	default:
		return reflect.Value{}, false
	}
}

// SameTable reports whether table (as written in a statement, possibly
// schema-qualified or quoted) names the entity's table. Schemas are ignored.
func (s *Schema) SameTable(table string) bool {
	return strings.EqualFold(ident.BaseTableName(table), ident.BaseTableName(s.Table))
}

// Introspector resolves column metadata for entity types.
type Introspector interface {
	ColumnsOf(typ reflect.Type) (*Schema, error)
}

// ReflectIntrospector builds schemas from `db` struct tags and caches them per type.
// Safe for concurrent use; each type is built at most once.
type ReflectIntrospector struct {
	cache sync.Map // reflect.Type -> *schemaSlot
}

type schemaSlot struct {
	once   sync.Once
	schema *Schema
	err    error
}

func NewIntrospector() *ReflectIntrospector {
	return &ReflectIntrospector{}
}

// Register builds schemas for targets up front, so configuration errors surface at startup.
func (in *ReflectIntrospector) Register(targets ...any) error {
	for _, t := range targets {
		if _, err := SchemaOf(in, t); err != nil {
			return err
		}
	}
	return nil
}

// ColumnsOf implements Introspector.
func (in *ReflectIntrospector) ColumnsOf(typ reflect.Type) (*Schema, error) {
	for typ != nil && typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	if typ == nil {
		return nil, fmt.Errorf("%w: nil type", ErrSchemaUnavailable)
	}
	v, _ := in.cache.LoadOrStore(typ, &schemaSlot{})
	slot := v.(*schemaSlot)
	slot.once.Do(func() {
		slot.schema, slot.err = buildSchema(typ)
	})
	return slot.schema, slot.err
}

// SchemaOf resolves the schema of entity's dynamic type.
func SchemaOf(in Introspector, entity any) (*Schema, error) {
	if entity == nil {
		return nil, fmt.Errorf("%w: nil entity", ErrSchemaUnavailable)
	}
	return in.ColumnsOf(reflect.TypeOf(entity))
}

func buildSchema(typ reflect.Type) (*Schema, error) {
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %v is not a struct", ErrSchemaUnavailable, typ)
	}
	if typ.Name() == "" {
		return nil, fmt.Errorf("%w: cannot derive schema for anonymous struct of type %v", ErrSchemaUnavailable, typ)
	}
	table, err := resolveTableName(typ)
	if err != nil {
		return nil, err
	}
	s := &Schema{
		Type:       typ,
		ObjectType: resolveObjectType(typ),
		Table:      table,
		Columns:    collectColumns(typ, nil),
	}
	if len(s.Columns) == 0 {
		return nil, fmt.Errorf("%w: %v has no columns", ErrSchemaUnavailable, typ)
	}
	if !markFallbackKey(s) {
		return nil, fmt.Errorf("%w: %v has no primary key", ErrSchemaUnavailable, typ)
	}
	return s, nil
}

func collectColumns(typ reflect.Type, prefix []int) []Column {
	var cols []Column
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		idx := append(append([]int(nil), prefix...), i)
		tag, hasTag := f.Tag.Lookup("db")
		if tag == "-" {
			continue
		}
		if f.Anonymous && !hasTag && f.Type.Kind() == reflect.Struct {
			cols = append(cols, collectColumns(f.Type, idx)...)
			continue
		}
		if !f.IsExported() {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		if name == "" {
			name = ident.Snake(f.Name)
		}
		cols = append(cols, Column{
			Name:       name,
			Field:      fieldName(f),
			PrimaryKey: hasOption(opts, "pk"),
			index:      idx,
		})
	}
	return cols
}

// markFallbackKey marks "id" or "<singular table>_id" as the key when no column is tagged pk.
func markFallbackKey(s *Schema) bool {
	for _, c := range s.Columns {
		if c.PrimaryKey {
			return true
		}
	}
	candidates := []string{
		"id",
		inflection.Singular(ident.BaseTableName(s.Table)) + "_id",
	}
	for _, want := range candidates {
		for i := range s.Columns {
			if s.Columns[i].Name == want {
				s.Columns[i].PrimaryKey = true
				return true
			}
		}
	}
	return false
}

func hasOption(opts, want string) bool {
	for _, o := range strings.Split(opts, ",") {
		if strings.TrimSpace(o) == want {
			return true
		}
	}
	return false
}

// fieldName is the json name when tagged, else the Go name with its leading initialism lowercased.
func fieldName(f reflect.StructField) string {
	if tag, ok := f.Tag.Lookup("json"); ok {
		name, _, _ := strings.Cut(tag, ",")
		if name != "" && name != "-" {
			return name
		}
	}
	return lowerFirst(f.Name)
}

func lowerFirst(s string) string {
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		if !unicode.IsUpper(runes[i]) {
			break
		}
		// keep the last capital of an initialism that starts the next word: URLPath -> urlPath
		if i > 0 && i+1 < len(runes) && unicode.IsLower(runes[i+1]) {
			break
		}
		runes[i] = unicode.ToLower(runes[i])
	}
	return string(runes)
}

var (
	tableNamerType = reflect.TypeOf((*TableNamer)(nil)).Elem()
	typeNamerType  = reflect.TypeOf((*TypeNamer)(nil)).Elem()
)

func resolveTableName(typ reflect.Type) (string, error) {
	if reflect.PointerTo(typ).Implements(tableNamerType) {
		if namer, ok := reflect.New(typ).Interface().(TableNamer); ok {
			name := strings.TrimSpace(namer.TableName())
			if name == "" {
				return "", fmt.Errorf("%w: TableName returned empty string. %v", ErrSchemaUnavailable, typ)
			}
			return name, nil
		}
	}
	return inflection.Plural(ident.Snake(typ.Name())), nil
}

func resolveObjectType(typ reflect.Type) string {
	if reflect.PointerTo(typ).Implements(typeNamerType) {
		if namer, ok := reflect.New(typ).Interface().(TypeNamer); ok {
			if name := strings.TrimSpace(namer.ObjectTypeName()); name != "" {
				return name
			}
		}
	}
	if typ.PkgPath() == "" {
		return typ.Name()
	}
	return typ.PkgPath() + "." + typ.Name()
}

func indirect(v reflect.Value) (reflect.Value, bool) {
	for v.IsValid() && v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return reflect.Value{}, false
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return reflect.Value{}, false
	}
	return v, true
}
