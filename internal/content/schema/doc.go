// Package schema defines the record model and the plain-text file format
// used to keep database content under version control.
//
// # File Format
//
// Every record is stored as one file: a front matter block, a separator
// line, then the body verbatim.
//
//	date: "2024-03-01 10:00:00"
//	id: 42
//	meta:
//	  _edit_lock: "1709287200:1"
//	  layout: wide
//	modified: "2024-03-02 08:15:00"
//	status: publish
//	title: Hello World
//	type: post
//	---
//	<p>Hello!</p>
//
// Keys are always written in sorted order so that repeated dumps produce
// stable diffs. YAML is the default front matter format; TOML is available
// through NewCodec("toml").
//
// # Directory Layout
//
// Files live at {repo}/{type}/{slug}.{ext}, where the slug is derived from
// the title (see Slug) and the extension is html for post and page types
// and yml for everything else:
//
//	repo/
//	  ├── post/hello_world.html
//	  ├── page/about_us.html
//	  └── nav_menu_item/home.yml
//
// # Usage
//
//	codec := schema.DefaultCodec()
//	data, err := codec.Serialize(record)
//
//	fr, err := codec.Parse(path, data)
//	record, err := schema.FromFile(fr)
//
// # Design Principles
//
//   - The id front matter key joins a file to its stored record
//   - The file name is derived, never stored: a title edit moves the file
//   - Body cleanup (Normalize) is a separate step, not part of the codec
package schema
