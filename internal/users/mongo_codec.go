package users

import (
	"fmt"
	"reflect"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsoncodec"
	"go.mongodb.org/mongo-driver/bson/bsonrw"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"gorm.io/datatypes"
)

var tJSON = reflect.TypeOf(datatypes.JSON(nil))

// mongoRegistry stores datatypes.JSON values (the config attribute) as
// embedded documents instead of binary, so they stay queryable.
func mongoRegistry() *bsoncodec.Registry {
	reg := bson.NewRegistry()
	reg.RegisterTypeEncoder(tJSON, bsoncodec.ValueEncoderFunc(encodeJSONDocument))
	reg.RegisterTypeDecoder(tJSON, bsoncodec.ValueDecoderFunc(decodeJSONDocument))
	return reg
}

func encodeJSONDocument(_ bsoncodec.EncodeContext, vw bsonrw.ValueWriter, val reflect.Value) error {
	if !val.IsValid() || val.Type() != tJSON {
		return bsoncodec.ValueEncoderError{Name: "encodeJSONDocument", Types: []reflect.Type{tJSON}, Received: val}
	}
	if val.Len() == 0 {
		return vw.WriteNull()
	}
	var doc bson.Raw
	if err := bson.UnmarshalExtJSON(val.Bytes(), false, &doc); err != nil {
		return fmt.Errorf("config to bson: %w", err)
	}
	return bsonrw.Copier{}.CopyDocumentFromBytes(vw, doc)
}

func decodeJSONDocument(_ bsoncodec.DecodeContext, vr bsonrw.ValueReader, val reflect.Value) error {
	if !val.CanSet() || val.Type() != tJSON {
		return bsoncodec.ValueDecoderError{Name: "decodeJSONDocument", Types: []reflect.Type{tJSON}, Received: val}
	}
	switch vr.Type() {
	case bsontype.EmbeddedDocument:
		raw, err := bsonrw.Copier{}.CopyDocumentToBytes(vr)
		if err != nil {
			return err
		}
		js, err := bson.MarshalExtJSON(bson.Raw(raw), false, false)
		if err != nil {
			return fmt.Errorf("config from bson: %w", err)
		}
		val.SetBytes(js)
	case bsontype.Binary:
		// records written before config was stored as a document
		data, _, err := vr.ReadBinary()
		if err != nil {
			return err
		}
		val.SetBytes(append([]byte(nil), data...))
	case bsontype.Null:
		if err := vr.ReadNull(); err != nil {
			return err
		}
		val.SetBytes(nil)
	default:
		return fmt.Errorf("cannot decode %v into config", vr.Type())
	}
	return nil
}
