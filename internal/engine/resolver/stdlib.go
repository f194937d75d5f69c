package resolver

import (
	"codegraph/internal/engine/parser"
	"strings"
)

var pythonStdlibNames = []string{
	"__future__", "abc", "argparse", "array", "ast", "asyncio", "base64", "bisect", "builtins",
	"bz2", "calendar", "cmath", "codecs", "collections", "concurrent", "configparser", "contextlib",
	"contextvars", "copy", "csv", "ctypes", "dataclasses", "datetime", "decimal", "difflib", "dis",
	"email", "enum", "errno", "fcntl", "filecmp", "fnmatch", "fractions", "functools", "gc",
	"getopt", "getpass", "gettext", "glob", "graphlib", "gzip", "hashlib", "heapq", "hmac", "html",
	"http", "imaplib", "importlib", "inspect", "io", "ipaddress", "itertools", "json", "keyword",
	"linecache", "locale", "logging", "lzma", "mailbox", "math", "mimetypes", "multiprocessing",
	"numbers", "operator", "os", "pathlib", "pdb", "pickle", "pkgutil", "platform", "plistlib",
	"pprint", "profile", "pstats", "queue", "random", "re", "sched", "secrets", "select",
	"selectors", "shelve", "shlex", "shutil", "signal", "site", "smtplib", "socket", "socketserver",
	"sqlite3", "ssl", "stat", "statistics", "string", "struct", "subprocess", "sys", "sysconfig",
	"tarfile", "tempfile", "textwrap", "threading", "time", "timeit", "tkinter", "token",
	"tokenize", "tomllib", "traceback", "types", "typing", "unicodedata", "unittest", "urllib",
	"uuid", "venv", "warnings", "weakref", "webbrowser", "wsgiref", "xml", "zipfile", "zlib",
	"zoneinfo",
}

var nodeBuiltinNames = []string{
	"assert", "async_hooks", "buffer", "child_process", "cluster", "console", "constants",
	"crypto", "dgram", "diagnostics_channel", "dns", "domain", "events", "fs", "http", "http2",
	"https", "inspector", "module", "net", "os", "path", "perf_hooks", "process", "punycode",
	"querystring", "readline", "repl", "stream", "string_decoder", "sys", "timers", "tls",
	"trace_events", "tty", "url", "util", "v8", "vm", "wasi", "worker_threads", "zlib",
}

var rubyStdlibNames = []string{
	"base64", "benchmark", "bigdecimal", "cgi", "csv", "date", "delegate", "digest", "erb",
	"etc", "fileutils", "find", "forwardable", "io", "ipaddr", "json", "logger", "monitor",
	"net", "observer", "open-uri", "open3", "openssl", "optparse", "ostruct", "pathname", "pp",
	"prettyprint", "pstore", "psych", "racc", "rdoc", "securerandom", "set", "shellwords",
	"singleton", "socket", "stringio", "strscan", "tempfile", "time", "timeout", "tmpdir",
	"tsort", "uri", "weakref", "yaml", "zlib",
}

var rustStdlibNames = []string{"std", "core", "alloc", "proc_macro", "test"}

var javaStdlibPrefixes = []string{"java.", "javax.", "jdk.", "sun.", "com.sun.", "org.w3c.", "org.xml.", "kotlin."}

var dotnetStdlibPrefixes = []string{"System", "Microsoft"}

var (
	pythonStdlib = toLookup(pythonStdlibNames)
	nodeBuiltins = toLookup(nodeBuiltinNames)
	rubyStdlib   = toLookup(rubyStdlibNames)
	rustStdlib   = toLookup(rustStdlibNames)
)

func toLookup(names []string) map[string]bool {
	out := make(map[string]bool, len(names))
	for _, name := range names {
		out[name] = true
	}
	return out
}

// isStdlib reports whether imported names a module shipped with the
// language runtime.
func isStdlib(lang parser.Language, imported string) bool {
	switch lang.Family() {
	case parser.LangPython:
		return pythonStdlib[rootNamespace(imported, ".")]
	case parser.LangTypeScript, parser.LangJavaScript:
		if strings.HasPrefix(imported, "node:") || strings.HasPrefix(imported, "bun:") {
			return true
		}
		return nodeBuiltins[rootNamespace(imported, "/")]
	case parser.LangRuby:
		return rubyStdlib[rootNamespace(imported, "/")]
	case parser.LangRust:
		return rustStdlib[rootNamespace(imported, ":")]
	case parser.LangJava:
		return hasAnyPrefix(imported, javaStdlibPrefixes)
	case parser.LangCSharp:
		return dottedPrefix(imported, dotnetStdlibPrefixes)
	case parser.LangGo:
		// Standard library paths have no dot in their first element.
		first := rootNamespace(imported, "/")
		return first != "" && !strings.Contains(first, ".")
	case parser.LangPHP:
		// Unqualified names are global classes such as Exception or DateTime.
		return imported != "" && !strings.ContainsAny(imported, `\/.`)
	}
	return false
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}

// dottedPrefix matches whole dot-separated segments: "System" matches
// "System" and "System.Text" but not "SystemX".
func dottedPrefix(s string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if s == prefix || strings.HasPrefix(s, prefix+".") {
			return true
		}
	}
	return false
}
