package sites

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// Catalog maps lowercase template names to nginx server block templates.
// Templates reference properties as {{key}}.
type Catalog map[string]string

// Builtin returns the templates shipped with localserve.
func Builtin() Catalog {
	return Catalog{
		"proxy":     proxyTemplate,
		"php":       phpTemplate,
		"wordpress": wordpressTemplate,
		"drupal":    drupalTemplate,
	}
}

// Names returns the catalog's template names, sorted.
func (c Catalog) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve returns the template for typ. A typ starting with "." or "/" is read
// from the filesystem; anything else is looked up case-insensitively.
func (c Catalog) Resolve(typ string) (string, error) {
	if strings.HasPrefix(typ, ".") || strings.HasPrefix(typ, "/") {
		content, err := os.ReadFile(typ)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %w", ErrTemplateNotFound, typ, err)
		}
		return string(content), nil
	}

	tmpl, ok := c[strings.ToLower(typ)]
	if !ok {
		return "", fmt.Errorf("%w: %q (builtin types: %s)", ErrTemplateNotFound, typ, strings.Join(c.Names(), ", "))
	}
	return tmpl, nil
}

// Render substitutes every {{key}} in tmpl. Any placeholder left afterwards is
// reported as an UnresolvedPlaceholderError naming the first one.
func Render(site, tmpl string, values map[string]string) (string, error) {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys)*2)
	for _, key := range keys {
		pairs = append(pairs, "{{"+key+"}}", values[key])
	}
	rendered := strings.NewReplacer(pairs...).Replace(tmpl)

	if start := strings.Index(rendered, "{{"); start != -1 {
		rest := rendered[start+2:]
		key := rest
		if end := strings.Index(rest, "}}"); end != -1 {
			key = rest[:end]
		} else if nl := strings.IndexByte(rest, '\n'); nl != -1 {
			key = rest[:nl]
		}
		return "", &UnresolvedPlaceholderError{Site: site, Key: strings.TrimSpace(key)}
	}

	return rendered, nil
}

const proxyTemplate = `## nginx configuration generated by localserve

server {
  listen 80;
  server_name {{hostName}};

  location / {
    proxy_pass http://{{proxyHost}}:{{proxyPort}};
    proxy_http_version 1.1;
    proxy_set_header Host $host;
    proxy_set_header X-Real-IP $remote_addr;
    proxy_set_header X-Forwarded-For $proxy_add_x_forwarded_for;
    proxy_set_header X-Forwarded-Proto $scheme;
    proxy_set_header Upgrade $http_upgrade;
    proxy_set_header Connection "upgrade";
  }
}`

const phpTemplate = `## nginx configuration generated by localserve

server {
  listen 80;
  server_name {{hostName}};

  root "{{location}}";

  index index.php index.html;

  location / {
    try_files $uri $uri/ /index.php?$query_string;
  }

  location ~ \.php$ {
    include fastcgi_params;
    fastcgi_pass 127.0.0.1:{{phpfpmPort}};
    fastcgi_index index.php;
    fastcgi_param SCRIPT_FILENAME $document_root$fastcgi_script_name;
  }
}`

const wordpressTemplate = `## nginx configuration generated by localserve

server {
  listen 80;
  server_name {{hostName}};

  root "{{location}}";

  index index.php;

  location = /favicon.ico {
    log_not_found off;
    access_log off;
  }

  location = /robots.txt {
    allow all;
    log_not_found off;
    access_log off;
  }

  location / {
    try_files $uri $uri/ /index.php?$args;
  }

  location ~* \.(js|css|png|jpg|jpeg|gif|ico)$ {
    expires max;
    log_not_found off;
  }

  location ~ \.php$ {
    include fastcgi_params;
    fastcgi_pass 127.0.0.1:{{phpfpmPort}};
    fastcgi_read_timeout 2400;
    fastcgi_param PATH_INFO       $fastcgi_path_info;
    fastcgi_param PATH_TRANSLATED $document_root$fastcgi_path_info;
    fastcgi_param SCRIPT_FILENAME $document_root$fastcgi_script_name;
    fastcgi_buffers 16 16k;
    fastcgi_buffer_size 32k;
    fastcgi_index index.php;
  }
}`

const drupalTemplate = `## nginx configuration generated by localserve

server {
  listen 80;
  server_name {{hostName}};

  root "{{location}}";

  index index.php;

  location = /favicon.ico {
    log_not_found off;
    access_log off;
  }

  location = /robots.txt {
    allow all;
    log_not_found off;
    access_log off;
  }

  location ~ \..*/.*\.php$ {
    return 403;
  }

  location ~ ^/sites/.*/private/ {
    return 403;
  }

  location ~ (^|/)\. {
    return 403;
  }

  location / {
    try_files $uri /index.php?$query_string;
  }

  location @rewrite {
    rewrite ^/(.*)$ /index.php?q=$1;
  }

  location ~ /vendor/.*\.php$ {
    deny all;
    return 404;
  }

  location ~ '\.php$|^/update.php' {
    fastcgi_split_path_info ^(.+?\.php)(|/.*)$;
    include fastcgi_params;
    fastcgi_param HTTP_PROXY "";
    fastcgi_param SCRIPT_FILENAME $document_root$fastcgi_script_name;
    fastcgi_param PATH_INFO $fastcgi_path_info;
    fastcgi_param QUERY_STRING $query_string;
    fastcgi_intercept_errors on;
    fastcgi_read_timeout 2400;
    fastcgi_pass 127.0.0.1:{{phpfpmPort}};
  }

  location ~ ^/sites/.*/files/styles/ {
    try_files $uri @rewrite;
  }

  location ~* \.(js|css|png|jpg|jpeg|gif|ico|svg)$ {
    try_files $uri @rewrite;
    expires max;
    log_not_found off;
  }
}`
