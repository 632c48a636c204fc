package backend

import (
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Response envelopes of the game backend. Only the parts the gateway depends on are
// constrained; everything else is allowed through.
const (
	envelopeSchema = `{
  "type": "object",
  "properties": {
    "success": {"type": "boolean"},
    "error": {"type": "string"}
  }
}`

	contractsSchema = `{
  "type": "object",
  "required": ["contracts"],
  "properties": {
    "contracts": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["contractId", "type"],
        "properties": {
          "contractId": {"type": "string", "minLength": 1},
          "type": {"type": "string"},
          "pricePerResource": {"type": ["number", "null"]},
          "targetAmount": {"type": ["number", "null"]}
        }
      }
    }
  }
}`

	contractSchema = `{
  "type": "object",
  "required": ["contract"],
  "properties": {
    "contract": {
      "type": "object",
      "required": ["contractId"],
      "properties": {"contractId": {"type": "string", "minLength": 1}}
    }
  }
}`

	buildingSchema = `{
  "type": "object",
  "required": ["building"],
  "properties": {
    "building": {
      "type": "object",
      "required": ["buildingId", "type"],
      "properties": {
        "buildingId": {"type": "string", "minLength": 1},
        "type": {"type": "string"}
      }
    }
  }
}`

	buildingResourcesSchema = `{
  "type": "object",
  "required": ["buildingId"],
  "properties": {
    "buildingId": {"type": "string"},
    "stored": {"type": ["array", "null"]},
    "publiclySold": {"type": ["array", "null"]},
    "purchasable": {"type": ["array", "null"]}
  }
}`

	resourceTypesSchema = `{
  "type": "object",
  "required": ["resourceTypes"],
  "properties": {
    "resourceTypes": {
      "type": "array",
      "items": {"type": "object", "required": ["id"]}
    }
  }
}`

	polygonSchema = `{
  "type": "object",
  "required": ["polygon"],
  "properties": {"polygon": {"type": "object", "required": ["landId"]}}
}`

	messagesSchema = `{
  "type": "object",
  "required": ["messages"],
  "properties": {
    "messages": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["messageId", "sender", "receiver", "type"]
      }
    }
  }
}`

	messageSchema = `{
  "type": "object",
  "required": ["message"],
  "properties": {
    "message": {"type": "object", "required": ["messageId", "sender", "receiver"]}
  }
}`

	citizenSchema = `{
  "type": "object",
  "required": ["citizen"],
  "properties": {
    "citizen": {"type": "object", "required": ["username"]}
  }
}`

	transactionsSchema = `{
  "type": "object",
  "required": ["transactions"],
  "properties": {"transactions": {"type": "array"}}
}`

	transactionSchema = `{
  "type": "object",
  "required": ["transaction"],
  "properties": {"transaction": {"type": "object", "required": ["id"]}}
}`
)

type schemas struct {
	envelope          *jsonschema.Schema
	contracts         *jsonschema.Schema
	contract          *jsonschema.Schema
	building          *jsonschema.Schema
	buildingResources *jsonschema.Schema
	resourceTypes     *jsonschema.Schema
	polygon           *jsonschema.Schema
	messages          *jsonschema.Schema
	message           *jsonschema.Schema
	citizen           *jsonschema.Schema
	transactions      *jsonschema.Schema
	transaction       *jsonschema.Schema
}

func compileSchemas() (*schemas, error) {
	var err error
	compile := func(name, src string) *jsonschema.Schema {
		if err != nil {
			return nil
		}
		var s *jsonschema.Schema
		s, err = jsonschema.CompileString(name+".schema.json", src)
		if err != nil {
			err = fmt.Errorf("compile %s schema: %w", name, err)
		}
		return s
	}

	s := &schemas{
		envelope:          compile("envelope", envelopeSchema),
		contracts:         compile("contracts", contractsSchema),
		contract:          compile("contract", contractSchema),
		building:          compile("building", buildingSchema),
		buildingResources: compile("building_resources", buildingResourcesSchema),
		resourceTypes:     compile("resource_types", resourceTypesSchema),
		polygon:           compile("polygon", polygonSchema),
		messages:          compile("messages", messagesSchema),
		message:           compile("message", messageSchema),
		citizen:           compile("citizen", citizenSchema),
		transactions:      compile("transactions", transactionsSchema),
		transaction:       compile("transaction", transactionSchema),
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}
