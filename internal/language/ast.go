package language

import "github.com/vektah/gqlparser/v2/ast"

type (
	Schema              = ast.Schema
	QueryDocument       = ast.QueryDocument
	OperationDefinition = ast.OperationDefinition
	VariableDefinition  = ast.VariableDefinition
	SelectionSet        = ast.SelectionSet
	Selection           = ast.Selection
	Field               = ast.Field
	InlineFragment      = ast.InlineFragment
	FragmentSpread      = ast.FragmentSpread
	ArgumentList        = ast.ArgumentList
	Argument            = ast.Argument
	Value               = ast.Value
	FieldDefinition     = ast.FieldDefinition
	Type                = ast.Type
	Definition          = ast.Definition
)

type Operation = ast.Operation

type DefinitionKind = ast.DefinitionKind

type ValueKind = ast.ValueKind

const (
	Query        Operation = ast.Query
	Mutation     Operation = ast.Mutation
	Subscription Operation = ast.Subscription

	Object    DefinitionKind = ast.Object
	Interface DefinitionKind = ast.Interface
	Union     DefinitionKind = ast.Union
	Scalar    DefinitionKind = ast.Scalar
	Enum      DefinitionKind = ast.Enum

	Variable     ValueKind = ast.Variable
	IntValue     ValueKind = ast.IntValue
	FloatValue   ValueKind = ast.FloatValue
	StringValue  ValueKind = ast.StringValue
	BlockValue   ValueKind = ast.BlockValue
	BooleanValue ValueKind = ast.BooleanValue
	NullValue    ValueKind = ast.NullValue
	EnumValue    ValueKind = ast.EnumValue
	ListValue    ValueKind = ast.ListValue
	ObjectValue  ValueKind = ast.ObjectValue
)
