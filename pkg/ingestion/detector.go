// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/java"

	"github.com/kraklabs/logmine/pkg/logparse"
)

// Popularity thresholds above which a repository qualifies for mining even
// when no logging was detected in the inspected files.
const (
	QualifyMinStars     = 200
	QualifyMinDiskUsage = 256000
)

// FileDetection is the detection outcome for a single file.
type FileDetection struct {
	Path            string
	ContainsLogging bool
	// Framework is the file's dominant indicator, empty when none.
	Framework string
}

// Detection aggregates file detections for a repository.
type Detection struct {
	Files        int
	LoggingFiles int
	// Framework is the most common file indicator; ties go to the one seen
	// first.
	Framework  string
	Indicators map[string]int
}

// ContainsLogging reports whether any file showed a logging indicator.
func (d Detection) ContainsLogging() bool { return d.LoggingFiles > 0 }

// Qualifies reports whether a repository is worth mining: it logs, or it is
// both popular and large.
func (d Detection) Qualifies(stars, diskUsage int) bool {
	return d.ContainsLogging() || (stars > QualifyMinStars && diskUsage > QualifyMinDiskUsage)
}

var javaImportIndicators = []struct {
	prefix    string
	framework string
}{
	{"org.slf4j", "slf4j"},
	{"org.apache.log4j", "log4j"},
	{"org.apache.logging.log4j", "log4j"},
	{"java.util.logging", "utillogger"},
}

// Method names used when a file has no logging import. Names shared by
// several frameworks count for log4j.
var javaStatementIndicators = map[string]string{
	"debug":   "log4j",
	"info":    "log4j",
	"warn":    "log4j",
	"error":   "log4j",
	"fatal":   "log4j",
	"severe":  "utillogger",
	"warning": "utillogger",
	"config":  "utillogger",
	"fine":    "utillogger",
	"finer":   "utillogger",
	"finest":  "utillogger",
}

var cLoggingIncludes = []string{"syslog.h", "linux/printk.h", "linux/kernel.h", "glib.h"}

// Detector inspects source files for logging frameworks. It reads import and
// include declarations and call names from the tree-sitter syntax tree, so
// matches inside comments and string literals do not count.
type Detector struct {
	language logparse.Language
	cNames   logparse.Strategy
	logger   *slog.Logger
}

// NewDetector creates a detector for a language.
func NewDetector(language logparse.Language, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Detector{language: language, logger: logger}
	if language == logparse.LanguageC {
		d.cNames = logparse.MustStrategy(logparse.Dialect{Language: logparse.LanguageC, Framework: logparse.FrameworkPrintf})
	}
	return d
}

func (d *Detector) newParser() (*sitter.Parser, error) {
	p := sitter.NewParser()
	switch d.language {
	case logparse.LanguageJava:
		p.SetLanguage(java.GetLanguage())
	case logparse.LanguageC:
		p.SetLanguage(c.GetLanguage())
	default:
		return nil, fmt.Errorf("no grammar for %s", d.language)
	}
	return p, nil
}

// Detect runs detection over every file. A file that fails to parse is
// logged and counted as not logging.
func (d *Detector) Detect(ctx context.Context, files []SourceFile) (Detection, error) {
	parser, err := d.newParser()
	if err != nil {
		return Detection{}, err
	}
	defer parser.Close()

	det := Detection{Indicators: make(map[string]int)}
	var order []string
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return Detection{}, err
		}
		fd, err := d.detectFile(ctx, parser, f)
		if err != nil {
			d.logger.Warn("detector.file.error", "path", f.Path, "err", err)
			fd = FileDetection{Path: f.Path}
		}
		det.Files++
		if fd.ContainsLogging {
			det.LoggingFiles++
		}
		if fd.Framework != "" {
			if det.Indicators[fd.Framework] == 0 {
				order = append(order, fd.Framework)
			}
			det.Indicators[fd.Framework]++
		}
	}
	det.Framework = majority(order, det.Indicators)

	d.logger.Info("detector.complete",
		"files", det.Files,
		"logging_files", det.LoggingFiles,
		"framework", det.Framework,
	)
	return det, nil
}

// DetectFile runs detection over a single file.
func (d *Detector) DetectFile(ctx context.Context, f SourceFile) (FileDetection, error) {
	parser, err := d.newParser()
	if err != nil {
		return FileDetection{}, err
	}
	defer parser.Close()
	return d.detectFile(ctx, parser, f)
}

func (d *Detector) detectFile(ctx context.Context, parser *sitter.Parser, f SourceFile) (FileDetection, error) {
	src := []byte(f.Content)
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return FileDetection{}, fmt.Errorf("tree-sitter parse: %w", err)
	}
	defer tree.Close()

	var imports, statements []string
	walkNodes(tree.RootNode(), func(n *sitter.Node) {
		switch n.Type() {
		case "import_declaration":
			if fw := javaImportFramework(nodeText(n, src)); fw != "" {
				imports = append(imports, fw)
			}
		case "method_invocation":
			if n.ChildByFieldName("object") == nil {
				return
			}
			if name := n.ChildByFieldName("name"); name != nil {
				if fw, ok := javaStatementIndicators[nodeText(name, src)]; ok {
					statements = append(statements, fw)
				}
			}
		case "preproc_include":
			if path := n.ChildByFieldName("path"); path != nil && cLoggingInclude(nodeText(path, src)) {
				imports = append(imports, "printf")
			}
		case "call_expression":
			if fn := n.ChildByFieldName("function"); fn != nil && fn.Type() == "identifier" && d.cNames != nil {
				if _, ok := d.cNames.Lookup(nodeText(fn, src)); ok {
					statements = append(statements, "printf")
				}
			}
		}
	})

	fd := FileDetection{
		Path:            f.Path,
		ContainsLogging: len(imports) > 0 || len(statements) > 0,
	}
	indicators := imports
	if len(indicators) == 0 {
		indicators = statements
	}
	counts := make(map[string]int)
	var order []string
	for _, fw := range indicators {
		if counts[fw] == 0 {
			order = append(order, fw)
		}
		counts[fw]++
	}
	fd.Framework = majority(order, counts)
	return fd, nil
}

// walkNodes visits every named node depth-first.
func walkNodes(n *sitter.Node, visit func(*sitter.Node)) {
	if n == nil {
		return
	}
	visit(n)
	for i := 0; i < int(n.NamedChildCount()); i++ {
		walkNodes(n.NamedChild(i), visit)
	}
}

func nodeText(n *sitter.Node, src []byte) string {
	return string(src[n.StartByte():n.EndByte()])
}

func javaImportFramework(decl string) string {
	path := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(decl), "import"))
	path = strings.TrimSpace(strings.TrimPrefix(path, "static"))
	path = strings.TrimSuffix(path, ";")
	for _, ind := range javaImportIndicators {
		if path == ind.prefix || strings.HasPrefix(path, ind.prefix+".") {
			return ind.framework
		}
	}
	return ""
}

func cLoggingInclude(path string) bool {
	path = strings.Trim(path, `<>"`)
	for _, inc := range cLoggingIncludes {
		if path == inc || strings.HasSuffix(path, "/"+inc) {
			return true
		}
	}
	return false
}

// majority returns the most frequent key, breaking ties by order.
func majority(order []string, counts map[string]int) string {
	best := ""
	for _, k := range order {
		if best == "" || counts[k] > counts[best] {
			best = k
		}
	}
	return best
}
