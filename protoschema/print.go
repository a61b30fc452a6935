package protoschema

import (
	"fmt"
	"io"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/desc/protoprint"
)

// PrintProto writes every file in the schema to w as protobuf source, in the
// same order as Files. Each file is preceded by a comment with its path.
func (s *Schema) PrintProto(w io.Writer) error {
	return s.PrintProtoWith(&protoprint.Printer{}, w)
}

// PrintProtoWith is like PrintProto but uses the given printer, which allows
// customizing the output format.
func (s *Schema) PrintProtoWith(printer *protoprint.Printer, w io.Writer) error {
	for i, file := range s.linked {
		fd, err := desc.WrapFile(file)
		if err != nil {
			return err
		}
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "// file: %s\n", file.Path()); err != nil {
			return err
		}
		if err := printer.PrintProtoFile(fd, w); err != nil {
			return fmt.Errorf("failed to print %q: %w", file.Path(), err)
		}
	}
	return nil
}
